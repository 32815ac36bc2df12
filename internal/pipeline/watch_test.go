package pipeline

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalesces(t *testing.T) {
	var fired atomic.Int32
	d := newDebouncer(30*time.Millisecond, func() { fired.Add(1) })
	for range 5 {
		d.trigger()
	}
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())

	d.stop()
	d.trigger()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestShouldIgnoreEvent(t *testing.T) {
	assert.True(t, shouldIgnoreEvent("/src/.app.js.swp"))
	assert.True(t, shouldIgnoreEvent("/src/app.js~"))
	assert.True(t, shouldIgnoreEvent("/src/#app.js#"))
	assert.False(t, shouldIgnoreEvent("/src/app.js"))
}

func TestWatcherTriggersOnSourceChange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	out := filepath.Join(dir, "dist")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(out, 0o755))

	var fired atomic.Int32
	w, err := newWatcher([]string{dir}, out, newDebouncer(20*time.Millisecond, func() { fired.Add(1) }))
	require.NoError(t, err)
	go w.run()
	t.Cleanup(w.close)

	require.NoError(t, os.WriteFile(filepath.Join(out, "app.js"), []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, fired.Load(), "output directory writes are ignored")

	require.NoError(t, os.WriteFile(filepath.Join(src, "app.js"), []byte("x"), 0o600))
	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherCloseCancelsPendingTrigger(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32
	w, err := newWatcher([]string{dir}, filepath.Join(dir, "dist"), newDebouncer(50*time.Millisecond, func() { fired.Add(1) }))
	require.NoError(t, err)

	w.debounce.trigger()
	w.close()
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, fired.Load(), "no trigger fires after close")

	w.debounce.trigger()
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
