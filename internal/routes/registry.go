package routes

import (
	"net/http"
	"sort"
	"sync"

	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
)

// RouteProvider contributes named handlers.
type RouteProvider interface {
	Handlers() map[string]http.Handler
}

// Registry maps handler names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]http.Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]http.Handler)}
}

// Register adds one handler. Names are unique.
func (r *Registry) Register(name string, h http.Handler) error {
	if name == "" || h == nil {
		return errors.ValidationError("route handler requires a name and a handler").Build()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[name]; dup {
		return errors.ValidationError("route handler already registered").
			WithContext("route", name).
			Build()
	}
	r.handlers[name] = h
	return nil
}

// Provide registers every handler of p.
func (r *Registry) Provide(p RouteProvider) error {
	handlers := p.Handlers()
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Register(name, handlers[name]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Lookup(name string) (http.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names lists registered handler names sorted lexically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
