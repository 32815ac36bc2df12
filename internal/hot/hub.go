// Package hot implements the hot-update stream served to development pages.
package hot

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/appserve/internal/logfields"
	"git.home.luguber.info/inful/appserve/internal/metrics"
)

const (
	// StreamPath is the server-sent events endpoint.
	StreamPath = "/__hot"
	// ClientPath serves the browser client script.
	ClientPath = "/__hot/client.js"
)

// DefaultHeartbeat keeps idle connections alive through proxies.
const DefaultHeartbeat = 500 * time.Millisecond

// Actions published on the stream.
const (
	ActionBuilding = "building"
	ActionBuilt    = "built"
)

// Event is one message on the stream.
type Event struct {
	Action   string   `json:"action"`
	Hash     string   `json:"hash,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Hub manages SSE clients and broadcasts build events to them.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*client
	closed    bool
	last      *Event
	heartbeat time.Duration
	recorder  metrics.Recorder
}

type client struct {
	id   int
	ch   chan Event
	done chan struct{}
}

// NewHub returns a hub sending a heartbeat comment every heartbeat interval.
func NewHub(heartbeat time.Duration, rec metrics.Recorder) *Hub {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Hub{clients: map[int]*client{}, heartbeat: heartbeat, recorder: rec}
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "hot update stream shutting down", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := &client{ch: make(chan Event, 8), done: make(chan struct{})}
	h.mu.Lock()
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	last := h.last
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetHotClients(n)
	defer h.removeClient(c.id)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		return
	}
	if last != nil {
		if err := writeEvent(bw, *last); err != nil {
			return
		}
	}
	if err := bw.Flush(); err != nil {
		return
	}
	flusher.Flush()

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": heartbeat\n\n"); err != nil {
				slog.Debug("hot heartbeat write", logfields.Error(err))
				return
			}
		case ev := <-c.ch:
			if err := writeEvent(bw, ev); err != nil {
				slog.Debug("hot event write", logfields.Error(err))
				return
			}
		}
		if err := bw.Flush(); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeEvent(bw *bufio.Writer, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := bw.WriteString("data: "); err != nil {
		return err
	}
	if _, err := bw.Write(payload); err != nil {
		return err
	}
	_, err = bw.WriteString("\n\n")
	return err
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetHotClients(n)
	}
}

// Publish sends ev to every client. Clients whose buffer is full are dropped.
// Built events are replayed to clients that connect later.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if ev.Action == ActionBuilt {
		cp := ev
		h.last = &cp
	}
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- ev:
		case <-c.done:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("hot event published", "action", ev.Action, "clients", len(snapshot), "dropped", dropped)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Middleware serves the stream and client script and passes anything else on.
func (h *Hub) Middleware(next http.Handler) http.Handler {
	script := []byte(ClientScript(true))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case StreamPath:
			h.ServeHTTP(w, r)
		case ClientPath:
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = w.Write(script)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// Shutdown closes all clients and prevents future publishes.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetHotClients(0)
}
