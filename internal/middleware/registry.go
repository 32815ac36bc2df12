package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/appserve/internal/config"
	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/logfields"
)

// Func wraps the next handler in the chain.
type Func func(http.Handler) http.Handler

// App is what an installer may touch while it runs.
type App interface {
	// Use appends mw to the installer's own slot in the chain.
	Use(mw Func)
	// Handle mounts h under a path prefix ahead of route dispatch.
	Handle(prefix string, h http.Handler)
}

// Host is the server side of App. Slots are declaration indexes.
type Host interface {
	UseAt(slot int, name string, mw Func)
	Mount(prefix string, h http.Handler)
}

// Installer configures one middleware on an App.
type Installer interface {
	Install(ctx context.Context, app App, options Options) error
}

// InstallerFunc adapts a function to Installer.
type InstallerFunc func(ctx context.Context, app App, options Options) error

func (f InstallerFunc) Install(ctx context.Context, app App, options Options) error {
	return f(ctx, app, options)
}

// Registry maps middleware names to installers.
type Registry struct {
	mu         sync.RWMutex
	installers map[string]Installer
	logger     *slog.Logger
}

// NewRegistry returns an empty registry. A nil logger uses slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{installers: make(map[string]Installer), logger: logger}
}

// Register adds an installer. Names are unique.
func (r *Registry) Register(name string, inst Installer) error {
	if name == "" || inst == nil {
		return errors.ValidationError("middleware installer requires a name and an implementation").Build()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.installers[name]; dup {
		return errors.ValidationError("middleware already registered").
			WithContext("middleware", name).
			Build()
	}
	r.installers[name] = inst
	return nil
}

// Names lists registered installers sorted lexically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.installers))
	for name := range r.installers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.installers[name]
	return ok
}

// Apply installs every declared middleware on host. All names are resolved
// before any installer runs; an unknown name is a configuration error and
// leaves host untouched. The first installer error is returned.
func (r *Registry) Apply(ctx context.Context, host Host, declared config.Middlewares) error {
	installers := make([]Installer, len(declared))
	r.mu.RLock()
	for i, d := range declared {
		inst, ok := r.installers[d.Name]
		if !ok {
			r.mu.RUnlock()
			return errors.ConfigError("unknown middleware").
				WithContext("middleware", d.Name).
				WithContext("available", r.namesLocked()).
				Build()
		}
		installers[i] = inst
	}
	r.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range declared {
		app := &slotApp{host: host, slot: i, name: d.Name}
		opts := Options(d.Options)
		inst := installers[i]
		g.Go(func() error {
			if err := inst.Install(gctx, app, opts); err != nil {
				if _, ok := errors.AsClassified(err); ok {
					return err
				}
				return errors.WrapError(err, errors.CategoryConfig, "middleware install failed").
					WithContext("middleware", d.Name).
					Build()
			}
			r.logger.Debug("Middleware installed", logfields.Middleware(d.Name))
			return nil
		})
	}
	return g.Wait()
}

func (r *Registry) namesLocked() []string {
	out := make([]string, 0, len(r.installers))
	for name := range r.installers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type slotApp struct {
	host Host
	slot int
	name string
}

func (a *slotApp) Use(mw Func) {
	if mw != nil {
		a.host.UseAt(a.slot, a.name, mw)
	}
}

func (a *slotApp) Handle(prefix string, h http.Handler) {
	a.host.Mount(prefix, h)
}
