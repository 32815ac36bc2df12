package hot

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, url string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body)
}

func readUntil(r *bufio.Reader, needle string, within time.Duration) bool {
	found := make(chan bool, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				found <- false
				return
			}
			if strings.Contains(line, needle) {
				found <- true
				return
			}
		}
	}()
	select {
	case ok := <-found:
		return ok
	case <-time.After(within):
		return false
	}
}

func TestHub_ReplaysLastBuiltEvent(t *testing.T) {
	hub := NewHub(time.Second, nil)
	defer hub.Shutdown()
	hub.Publish(Event{Action: ActionBuilt, Hash: "abc123"})

	srv := httptest.NewServer(hub)
	defer srv.Close()

	r := connect(t, srv.URL)
	assert.True(t, readUntil(r, `"hash":"abc123"`, time.Second))
}

func TestHub_BroadcastsToConnectedClients(t *testing.T) {
	hub := NewHub(time.Second, nil)
	defer hub.Shutdown()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	r := connect(t, srv.URL)
	require.True(t, readUntil(r, ": connected", time.Second))
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(Event{Action: ActionBuilt, Hash: "h2", Errors: []string{"src/app.js:1:1: error: boom"}})
	assert.True(t, readUntil(r, "boom", time.Second))
}

func TestHub_Heartbeat(t *testing.T) {
	hub := NewHub(20*time.Millisecond, nil)
	defer hub.Shutdown()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	r := connect(t, srv.URL)
	assert.True(t, readUntil(r, ": heartbeat", time.Second))
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub(0, nil)
	hub.Shutdown()
	hub.Publish(Event{Action: ActionBuilt, Hash: "x"})

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, StreamPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_MiddlewareRoutes(t *testing.T) {
	hub := NewHub(0, nil)
	defer hub.Shutdown()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "next")
	})
	h := hub.Middleware(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ClientPath, nil))
	assert.Contains(t, rec.Body.String(), `new EventSource("/__hot")`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, "next", rec.Body.String())
}

func TestParseClientModule(t *testing.T) {
	opts, ok := ParseClientModule("appserve-hot-client?noInfo=true&reload=true")
	require.True(t, ok)
	assert.Equal(t, ClientOptions{Reload: true, Quiet: true}, opts)

	opts, ok = ParseClientModule(ClientModule)
	require.True(t, ok)
	assert.False(t, opts.Reload)

	_, ok = ParseClientModule("./src/app.js")
	assert.False(t, ok)
}

func TestClientScript(t *testing.T) {
	assert.Contains(t, ClientScript(true), "var reload = true;")
	assert.Contains(t, ClientScript(false), "var reload = false;")
}
