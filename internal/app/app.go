// Package app wires configuration, the asset pipeline and the HTTP server
// into one startup sequence.
package app

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	"git.home.luguber.info/inful/appserve/internal/bundle/esbuild"
	"git.home.luguber.info/inful/appserve/internal/config"
	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/hot"
	"git.home.luguber.info/inful/appserve/internal/logfields"
	"git.home.luguber.info/inful/appserve/internal/metrics"
	"git.home.luguber.info/inful/appserve/internal/middleware"
	"git.home.luguber.info/inful/appserve/internal/mode"
	"git.home.luguber.info/inful/appserve/internal/pipeline"
	"git.home.luguber.info/inful/appserve/internal/routes"
	"git.home.luguber.info/inful/appserve/internal/server"
)

// Startup stage names used in logs and metrics.
const (
	StagePipeline = "pipeline"
	StageServer   = "server"
)

// App is the orchestrator. It runs the pipeline for its mode, then starts
// the server. A fatal error in any stage aborts startup with nothing
// left listening.
type App struct {
	cfg       *config.Config
	mode      mode.Mode
	logger    *slog.Logger
	workDir   string
	bundleCfg config.BundleConfig // paths rooted at workDir
	routesDir string
	factory   bundle.Factory
	registry  *prom.Registry
	recorder  metrics.Recorder
	handlers  *routes.Registry
	mws       *middleware.Registry
	pipeline  *pipeline.Pipeline
	server    *server.Server

	providers  []routes.RouteProvider
	installers []namedInstaller
}

type namedInstaller struct {
	name string
	inst middleware.Installer
}

// Option configures an App.
type Option func(*App)

func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithWorkDir sets the directory relative config paths resolve against.
// Defaults to the process working directory.
func WithWorkDir(dir string) Option {
	return func(a *App) { a.workDir = dir }
}

// WithBundlerFactory replaces the esbuild bundler.
func WithBundlerFactory(f bundle.Factory) Option {
	return func(a *App) { a.factory = f }
}

// WithRouteProviders registers application handlers route files may name.
func WithRouteProviders(providers ...routes.RouteProvider) Option {
	return func(a *App) { a.providers = append(a.providers, providers...) }
}

// WithMiddlewareInstaller registers an extra installer next to the built-ins.
func WithMiddlewareInstaller(name string, inst middleware.Installer) Option {
	return func(a *App) { a.installers = append(a.installers, namedInstaller{name: name, inst: inst}) }
}

// New builds the orchestrator for cfg in mode m.
func New(cfg *config.Config, m mode.Mode, opts ...Option) (*App, error) {
	if !m.Valid() {
		return nil, errors.ConfigError("unknown mode").WithContext("mode", string(m)).Fatal().Build()
	}
	a := &App{
		cfg:      cfg,
		mode:     m,
		logger:   slog.Default(),
		registry: prom.NewRegistry(),
		handlers: routes.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.recorder = metrics.NewPrometheusRecorder(a.registry)
	a.mws = middleware.Builtins(middleware.Deps{
		Logger:   a.logger,
		Adapter:  errors.NewHTTPErrorAdapter(a.logger),
		Recorder: a.recorder,
		Registry: a.registry,
	})
	for _, ni := range a.installers {
		if err := a.mws.Register(ni.name, ni.inst); err != nil {
			return nil, err
		}
	}
	for _, p := range a.providers {
		if err := a.handlers.Provide(p); err != nil {
			return nil, err
		}
	}
	if a.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "resolve working directory").Build()
		}
		a.workDir = wd
	}
	if a.factory == nil {
		a.factory = esbuild.NewFactory(a.workDir)
	}
	a.bundleCfg = resolveBundle(cfg.Bundle, a.workDir)
	a.routesDir = resolvePath(a.workDir, cfg.Server.RoutesDir)

	hub := hot.NewHub(a.bundleCfg.HotHeartbeat, a.recorder)
	a.pipeline = pipeline.New(m, bundle.NewComposer(a.bundleCfg.Settings()), a.factory,
		pipeline.WithRecorder(a.recorder),
		pipeline.WithHub(hub),
		pipeline.WithWatch(a.bundleCfg.Watch, a.bundleCfg.Debounce),
	)
	if err := a.handlers.Provide(routes.SystemProvider{Status: func() any { return a.pipeline.Status() }}); err != nil {
		return nil, err
	}
	serverCfg := cfg.Server
	serverCfg.RoutesDir = a.routesDir
	a.server = server.New(serverCfg,
		server.WithLogger(a.logger),
		server.WithMiddlewareRegistry(a.mws),
		server.WithRouteRegistry(a.handlers),
	)
	return a, nil
}

// Mode returns the mode the app was built for.
func (a *App) Mode() mode.Mode { return a.mode }

// Server exposes the HTTP server, mainly for its bound address.
func (a *App) Server() *server.Server { return a.server }

// Status returns the pipeline snapshot.
func (a *App) Status() pipeline.Status { return a.pipeline.Status() }

// Start runs the startup sequence under the configured startup timeout.
// On failure everything already started is torn down.
func (a *App) Start(ctx context.Context) error {
	startCtx, cancel := a.startupContext(ctx)
	defer cancel()

	a.logger.Info("Starting application", logfields.Mode(string(a.mode)), slog.String("addr", a.cfg.Server.Addr()))

	if err := a.stage(startCtx, StagePipeline, func(c context.Context) error { return a.pipeline.Run(c, a.server) }); err != nil {
		a.abort()
		return err
	}
	if err := a.stage(startCtx, StageServer, a.server.Start); err != nil {
		a.abort()
		return err
	}
	a.logger.Info("Application started", logfields.Mode(string(a.mode)), slog.String("addr", a.server.Addr()))
	return nil
}

// Build runs only the production build and writes the shells. The output
// directory is not served.
func (a *App) Build(ctx context.Context) error {
	buildCtx, cancel := a.startupContext(ctx)
	defer cancel()
	p := pipeline.New(mode.Production, bundle.NewComposer(a.bundleCfg.Settings()), a.factory,
		pipeline.WithRecorder(a.recorder))
	defer func() { _ = p.Close(context.Background()) }()
	return a.stage(buildCtx, StagePipeline, func(c context.Context) error { return p.RunProduction(c, discardHandle{}) })
}

// Routes discovers the declared routes without serving them.
func (a *App) Routes(ctx context.Context) ([]routes.Descriptor, error) {
	return routes.Discover(ctx, a.routesDir, a.handlers)
}

// Stop shuts the server down and releases the pipeline.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.pipeline.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.WrapError(stderrors.Join(errs...), errors.CategoryRuntime, "shutdown failed").Build()
	}
	a.logger.Info("Application stopped")
	return nil
}

// Run starts the app, blocks until ctx is done and stops it within the
// configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.logger.Info("Shutdown signal received")
	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Stop(stopCtx)
}

func (a *App) startupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Server.StartupTimeout > 0 {
		return context.WithTimeout(ctx, a.cfg.Server.StartupTimeout)
	}
	return context.WithCancel(ctx)
}

func (a *App) stage(ctx context.Context, name string, run func(context.Context) error) error {
	start := time.Now()
	err := run(ctx)
	a.recorder.ObserveStageDuration(name, time.Since(start))
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		result := metrics.ResultFatal
		if stderrors.Is(err, context.Canceled) {
			result = metrics.ResultCanceled
		}
		a.recorder.IncStageResult(name, result)
		if stderrors.Is(err, context.DeadlineExceeded) {
			err = errors.WrapError(err, errors.CategoryRuntime, "startup timed out").
				WithContext("stage", name).
				WithContext("timeout", a.cfg.Server.StartupTimeout.String()).
				Fatal().
				Build()
		}
		a.logger.Error("Startup stage failed", logfields.Stage(name), logfields.Duration(time.Since(start)), logfields.Error(err))
		return err
	}
	a.recorder.IncStageResult(name, metrics.ResultSuccess)
	a.logger.Info("Startup stage complete", logfields.Stage(name), logfields.Duration(time.Since(start)))
	return nil
}

func (a *App) abort() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		a.logger.Warn("Cleanup after failed startup", logfields.Error(err))
	}
}

// discardHandle accepts pipeline registrations without a server.
type discardHandle struct{}

func (discardHandle) UseMiddleware(string, func(http.Handler) http.Handler) {}

func (discardHandle) ServeStatic(prefix, dir string) {
	slog.Info("Build output ready", logfields.Path(prefix), slog.String("dir", dir))
}
