package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appserve/internal/config"
	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
)

type fakeHost struct {
	mu     sync.Mutex
	slots  map[int][]Func
	names  map[int]string
	mounts map[string]http.Handler
}

func newFakeHost() *fakeHost {
	return &fakeHost{slots: map[int][]Func{}, names: map[int]string{}, mounts: map[string]http.Handler{}}
}

func (h *fakeHost) UseAt(slot int, name string, mw Func) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slots[slot] = append(h.slots[slot], mw)
	h.names[slot] = name
}

func (h *fakeHost) Mount(prefix string, handler http.Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mounts[prefix] = handler
}

func (h *fakeHost) handler(final http.Handler) http.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	slots := make([]int, 0, len(h.slots))
	for s := range h.slots {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	var all []Func
	for _, s := range slots {
		all = append(all, h.slots[s]...)
	}
	out := final
	for i := len(all) - 1; i >= 0; i-- {
		out = all[i](out)
	}
	return out
}

// tagging appends name to the X-Trace response header when the request passes.
func tagging(name string) Func {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Trace", name)
			next.ServeHTTP(w, r)
		})
	}
}

type recordingInstaller struct {
	name  string
	delay time.Duration
	calls atomic.Int32
	opts  Options
	mu    sync.Mutex
}

func (ri *recordingInstaller) Install(ctx context.Context, app App, opts Options) error {
	ri.calls.Add(1)
	ri.mu.Lock()
	ri.opts = opts
	ri.mu.Unlock()
	select {
	case <-time.After(ri.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	app.Use(tagging(ri.name))
	return nil
}

func declared(pairs ...any) config.Middlewares {
	var out config.Middlewares
	for i := 0; i+1 < len(pairs); i += 2 {
		opts, _ := pairs[i+1].(map[string]any)
		if opts == nil {
			opts = map[string]any{}
		}
		out = append(out, config.Middleware{Name: pairs[i].(string), Options: opts})
	}
	return out
}

func TestApplyCallsEachInstallerOnceWithOptions(t *testing.T) {
	reg := NewRegistry(nil)
	session := &recordingInstaller{name: "session"}
	cors := &recordingInstaller{name: "cors"}
	require.NoError(t, reg.Register("session", session))
	require.NoError(t, reg.Register("cors", cors))

	host := newFakeHost()
	err := reg.Apply(context.Background(), host, declared(
		"session", map[string]any{"secret": "x"},
		"cors", map[string]any{"origin": "*"},
	))
	require.NoError(t, err)

	assert.Equal(t, int32(1), session.calls.Load())
	assert.Equal(t, int32(1), cors.calls.Load())
	assert.Equal(t, Options{"secret": "x"}, session.opts)
	assert.Equal(t, Options{"origin": "*"}, cors.opts)
}

func TestApplyKeepsDeclarationOrderRegardlessOfCompletion(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register("slow", &recordingInstaller{name: "slow", delay: 50 * time.Millisecond}))
	require.NoError(t, reg.Register("fast", &recordingInstaller{name: "fast"}))
	require.NoError(t, reg.Register("medium", &recordingInstaller{name: "medium", delay: 10 * time.Millisecond}))

	host := newFakeHost()
	require.NoError(t, reg.Apply(context.Background(), host, declared("slow", nil, "fast", nil, "medium", nil)))

	rec := httptest.NewRecorder()
	host.handler(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"slow", "fast", "medium"}, rec.Header().Values("X-Trace"))
}

func TestApplyUnknownNameRunsNothing(t *testing.T) {
	reg := NewRegistry(nil)
	session := &recordingInstaller{name: "session"}
	require.NoError(t, reg.Register("session", session))

	host := newFakeHost()
	err := reg.Apply(context.Background(), host, declared("session", nil, "bogus", nil))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Contains(t, err.Error(), "unknown middleware")
	assert.Equal(t, int32(0), session.calls.Load())
	assert.Empty(t, host.slots)
}

func TestApplyReturnsInstallerError(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register("broken", InstallerFunc(func(context.Context, App, Options) error {
		return assert.AnError
	})))
	err := reg.Apply(context.Background(), newFakeHost(), declared("broken", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestApplyEmptyDeclaration(t *testing.T) {
	host := newFakeHost()
	require.NoError(t, NewRegistry(nil).Apply(context.Background(), host, nil))
	assert.Empty(t, host.slots)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register("a", &recordingInstaller{}))
	err := reg.Register("a", &recordingInstaller{})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	assert.Equal(t, []string{"a"}, reg.Names())
}

func TestBuiltinsRegistersEveryName(t *testing.T) {
	reg := Builtins(Deps{})
	assert.Equal(t, []string{
		NameCompress, NameCORS, NameLogging, NameMetrics,
		NameRateLimit, NameRecovery, NameRequestID, NameStatic,
	}, reg.Names())
}
