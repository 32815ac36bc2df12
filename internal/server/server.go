package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/mux"

	"git.home.luguber.info/inful/appserve/internal/config"
	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/logfields"
	"git.home.luguber.info/inful/appserve/internal/middleware"
	"git.home.luguber.info/inful/appserve/internal/routes"
)

type namedMiddleware struct {
	name string
	mw   middleware.Func
}

type mount struct {
	prefix  string
	handler http.Handler
}

// Server is the application HTTP server. Its handler is assembled once in
// Prepare; registrations arriving afterwards are rejected.
type Server struct {
	cfg         config.ServerConfig
	logger      *slog.Logger
	adapter     *errors.HTTPErrorAdapter
	middlewares *middleware.Registry
	handlers    *routes.Registry

	mu       sync.Mutex
	frozen   bool
	prepared bool
	pipeline []namedMiddleware
	slots    map[int][]namedMiddleware
	mounts   []mount
	routes   []routes.Descriptor
	handler  http.Handler

	srv *http.Server
	ln  net.Listener
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMiddlewareRegistry replaces the built-in installers.
func WithMiddlewareRegistry(r *middleware.Registry) Option {
	return func(s *Server) { s.middlewares = r }
}

// WithRouteRegistry sets the handlers route files may name.
func WithRouteRegistry(r *routes.Registry) Option {
	return func(s *Server) { s.handlers = r }
}

// New constructs a server for cfg.
func New(cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{cfg: cfg, slots: make(map[int][]namedMiddleware)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.adapter = errors.NewHTTPErrorAdapter(s.logger)
	if s.middlewares == nil {
		s.middlewares = middleware.Builtins(middleware.Deps{Logger: s.logger, Adapter: s.adapter})
	}
	if s.handlers == nil {
		s.handlers = routes.NewRegistry()
	}
	return s
}

// UseMiddleware appends a pipeline middleware. These run ahead of every
// declared middleware, in registration order.
func (s *Server) UseMiddleware(name string, mw func(http.Handler) http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectLocked("middleware", name) {
		return
	}
	s.pipeline = append(s.pipeline, namedMiddleware{name: name, mw: mw})
}

// ServeStatic serves dir under prefix. Misses fall through to the routes.
func (s *Server) ServeStatic(prefix, dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectLocked("static", prefix) {
		return
	}
	s.pipeline = append(s.pipeline, namedMiddleware{name: "static:" + prefix, mw: middleware.Static(prefix, dir)})
	s.logger.Info("Serving static files", logfields.Path(prefix), slog.String("dir", dir))
}

// UseAt implements middleware.Host.
func (s *Server) UseAt(slot int, name string, mw middleware.Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectLocked("middleware", name) {
		return
	}
	s.slots[slot] = append(s.slots[slot], namedMiddleware{name: name, mw: mw})
}

// Mount implements middleware.Host.
func (s *Server) Mount(prefix string, h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectLocked("mount", prefix) {
		return
	}
	s.mounts = append(s.mounts, mount{prefix: prefix, handler: h})
}

func (s *Server) rejectLocked(kind, name string) bool {
	if !s.frozen {
		return false
	}
	s.logger.Warn("Registration after startup ignored", slog.String("kind", kind), slog.String("name", name))
	return true
}

// Prepare installs the declared middlewares, discovers routes and builds
// the handler. It runs at most once.
func (s *Server) Prepare(ctx context.Context) error {
	s.mu.Lock()
	if s.prepared {
		s.mu.Unlock()
		return errors.InternalError("server already prepared").Build()
	}
	s.prepared = true
	s.mu.Unlock()

	if err := s.middlewares.Apply(ctx, s, s.cfg.Middlewares); err != nil {
		return err
	}
	found, err := routes.Discover(ctx, s.cfg.RoutesDir, s.handlers)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "startup cancelled").Fatal().Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = found
	s.handler = s.buildLocked()
	s.frozen = true
	return nil
}

func (s *Server) buildLocked() http.Handler {
	router := mux.NewRouter()
	for _, m := range s.mounts {
		router.PathPrefix(m.prefix).Handler(m.handler)
	}
	for _, d := range s.routes {
		router.Handle(d.Pattern(), d.Handler).Methods(d.Method)
		s.logger.Info("Route registered",
			logfields.Method(d.Method),
			logfields.URL(d.URL),
			logfields.Route(d.Route),
			logfields.Feature(d.Feature))
	}
	router.NotFoundHandler = http.HandlerFunc(s.notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(s.notFound)

	chain := make([]namedMiddleware, 0, len(s.pipeline))
	chain = append(chain, s.pipeline...)
	slots := make([]int, 0, len(s.slots))
	for slot := range s.slots {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		chain = append(chain, s.slots[slot]...)
	}

	var h http.Handler = router
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i].mw(h)
	}
	names := make([]string, len(chain))
	for i, c := range chain {
		names[i] = c.name
	}
	s.logger.Debug("Middleware chain assembled", slog.Any("chain", names))
	return h
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	err := errors.NewError(errors.CategoryNotFound, "not found").
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()
	s.adapter.WriteErrorResponse(w, r, err)
}

// Handler returns the assembled handler, or nil before Prepare.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

// Routes returns the discovered routes.
func (s *Server) Routes() []routes.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]routes.Descriptor, len(s.routes))
	copy(out, s.routes)
	return out
}

// Start prepares the handler and begins serving on the configured address.
// The listener is bound before Start returns.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Prepare(ctx); err != nil {
		return err
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "http listen failed").
			WithContext("addr", s.cfg.Addr()).
			Fatal().
			Build()
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}
	s.mu.Lock()
	s.srv, s.ln = srv, ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", logfields.Error(err))
		}
	}()
	s.logger.Info("HTTP server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "http server shutdown").Build()
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
