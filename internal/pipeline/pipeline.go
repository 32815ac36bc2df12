// Package pipeline drives the asset build for the active mode and hands the
// result to the hosting server.
//
// A Pipeline runs once. Development attaches a rebuild middleware and the hot
// update stream to the server, writes the HTML shells and keeps rebuilding in
// the background. Production performs a one-shot build, writes the shells and
// asks the server to serve the output directory. Test mode does nothing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	ferrors "git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/hot"
	"git.home.luguber.info/inful/appserve/internal/logfields"
	"git.home.luguber.info/inful/appserve/internal/metrics"
	"git.home.luguber.info/inful/appserve/internal/mode"
)

// ServerHandle is the part of the application server the pipeline mutates.
type ServerHandle interface {
	UseMiddleware(name string, mw func(http.Handler) http.Handler)
	ServeStatic(prefix, dir string)
}

// Middleware names attached in development, in order.
const (
	MiddlewareRebuild = "rebuild"
	MiddlewareHot     = "hot"
)

// Pipeline composes the build configuration for one mode and runs it.
type Pipeline struct {
	mode     mode.Mode
	composer *bundle.Composer
	factory  bundle.Factory
	recorder metrics.Recorder
	hub      *hot.Hub
	watch    []string
	debounce time.Duration

	mu      sync.RWMutex
	state   State
	started bool
	builds  int
	last    *BuildSummary
	bundler bundle.Bundler

	gate      buildGate
	stop      context.CancelFunc
	wg        sync.WaitGroup
	watcher   *watcher
	dashboard *dashboard
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithHub sets the hot update hub. The pipeline shuts it down on Close.
func WithHub(h *hot.Hub) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.hub = h
		}
	}
}

// WithWatch sets the directories watched for changes in development.
func WithWatch(dirs []string, debounce time.Duration) Option {
	return func(p *Pipeline) {
		p.watch = append([]string(nil), dirs...)
		if debounce > 0 {
			p.debounce = debounce
		}
	}
}

// New returns an idle pipeline for m.
func New(m mode.Mode, composer *bundle.Composer, factory bundle.Factory, opts ...Option) *Pipeline {
	p := &Pipeline{
		mode:     m,
		composer: composer,
		factory:  factory,
		recorder: metrics.NoopRecorder{},
		debounce: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.hub == nil {
		p.hub = hot.NewHub(hot.DefaultHeartbeat, p.recorder)
	}
	return p
}

// Mode returns the mode the pipeline was built for.
func (p *Pipeline) Mode() mode.Mode { return p.mode }

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Run dispatches on the pipeline mode.
func (p *Pipeline) Run(ctx context.Context, srv ServerHandle) error {
	switch p.mode {
	case mode.Production:
		return p.RunProduction(ctx, srv)
	case mode.Development:
		return p.RunDevelopment(ctx, srv)
	case mode.Test:
		slog.Info("Asset pipeline skipped", logfields.Mode(string(p.mode)))
		return nil
	default:
		return ferrors.ConfigError(fmt.Sprintf("unknown mode %q", string(p.mode))).
			WithContext("mode", string(p.mode)).
			Build()
	}
}

// RunDevelopment composes the development configuration, attaches the
// rebuild and hot middlewares to srv in that order and writes the HTML shells.
// It returns without waiting for the first build; builds run in the
// background until Close.
func (p *Pipeline) RunDevelopment(ctx context.Context, srv ServerHandle) error {
	if err := p.begin(); err != nil {
		return err
	}
	cfg, err := p.compose(mode.Development)
	if err != nil {
		return err
	}

	p.enter(StateBuilding)
	b, err := p.factory(cfg)
	if err != nil {
		return p.fail(ferrors.WrapError(err, ferrors.CategoryBuild, "create bundler").Fatal().Build())
	}
	p.mu.Lock()
	p.bundler = b
	p.mu.Unlock()

	p.gate.begin()
	srv.UseMiddleware(MiddlewareRebuild, newRebuildMiddleware(cfg.PublicPath, cfg.OutputPath, &p.gate))
	srv.UseMiddleware(MiddlewareHot, p.hub.Middleware)

	if err := p.writeShells(ctx, cfg, p.layoutShells()); err != nil {
		p.gate.end()
		return p.fail(err)
	}

	if err := p.startBackground(cfg); err != nil {
		p.gate.end()
		return p.fail(err)
	}

	p.enter(StateServing)
	slog.Info("Development pipeline serving",
		logfields.Stage("development"),
		slog.Int("bundles", len(cfg.Entry.Bundles())),
		slog.Int("watch_dirs", len(p.watch)))
	return nil
}

// RunProduction composes the production configuration, builds once and, on
// success, writes the HTML shells and tells srv to serve the output
// directory. Any hard error or error diagnostic fails the run.
func (p *Pipeline) RunProduction(ctx context.Context, srv ServerHandle) error {
	if err := p.begin(); err != nil {
		return err
	}
	cfg, err := p.compose(mode.Production)
	if err != nil {
		return err
	}

	p.enter(StateBuilding)
	b, err := p.factory(cfg)
	if err != nil {
		return p.fail(ferrors.WrapError(err, ferrors.CategoryBuild, "create bundler").Fatal().Build())
	}
	defer b.Dispose()

	start := time.Now()
	res, err := b.Build(ctx)
	p.recorder.ObserveBuildDuration(time.Since(start))
	p.record(res, err, start)
	if err != nil {
		p.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		return p.fail(ferrors.WrapError(err, ferrors.CategoryBuild, "production build failed").Fatal().Build())
	}
	if res.HasErrors() {
		p.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		return p.fail(ferrors.BuildError("production build failed: "+res.Summary()).
			WithContext("errors", len(res.Errors())).
			Build())
	}
	p.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
	slog.Info("Production build complete",
		logfields.Duration(time.Since(start)),
		slog.Int("outputs", len(res.OutputFiles)))

	if err := p.writeShells(ctx, cfg, directiveShells(cfg)); err != nil {
		return p.fail(err)
	}
	srv.ServeStatic(cfg.PublicPath, cfg.OutputPath)
	p.enter(StateServing)
	return nil
}

// Close stops background work and releases the bundler. It is safe to call
// on a pipeline that never ran.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	stop, w, dash, b := p.stop, p.watcher, p.dashboard, p.bundler
	p.stop, p.watcher, p.dashboard, p.bundler = nil, nil, nil, nil
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
	if w != nil {
		w.close()
	}
	p.wg.Wait()
	if b != nil {
		b.Dispose()
	}
	p.hub.Shutdown()
	if dash != nil {
		return dash.shutdown(ctx)
	}
	return nil
}

func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ferrors.InternalError("pipeline already ran; create a new one").
			WithContext("state", p.state.String()).
			Build()
	}
	p.started = true
	return nil
}

func (p *Pipeline) compose(m mode.Mode) (*bundle.BuildConfig, error) {
	p.enter(StateComposing)
	start := time.Now()
	cfg, err := p.composer.Compose(m)
	p.recorder.ObserveStageDuration("compose", time.Since(start))
	if err != nil {
		p.recorder.IncStageResult("compose", metrics.ResultFatal)
		return nil, p.fail(err)
	}
	p.recorder.IncStageResult("compose", metrics.ResultSuccess)
	return cfg, nil
}

func (p *Pipeline) enter(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !canTransition(p.state, s) {
		// Programming error: transitions are driven only by this package.
		panic(fmt.Sprintf("pipeline: invalid transition %s -> %s", p.state, s))
	}
	slog.Debug("Pipeline state", logfields.State(s.String()), slog.String("from", p.state.String()))
	p.state = s
}

func (p *Pipeline) fail(err error) error {
	p.enter(StateFailed)
	slog.Error("Pipeline failed", logfields.Mode(string(p.mode)), logfields.Error(err))
	return err
}

func (p *Pipeline) writeShells(_ context.Context, cfg *bundle.BuildConfig, shells []shell) error {
	start := time.Now()
	bundles := make([]string, 0)
	for _, b := range cfg.Entry.Bundles() {
		bundles = append(bundles, b.Name)
	}
	assets := ShellAssets{PublicPath: cfg.PublicPath, Scripts: bundles}
	if es, ok := cfg.ExtractStyle(); ok {
		assets.Styles = extractedStyles(es.Filename, cfg.OutputPath, bundles)
	}
	err := writeShells(shells, cfg.OutputPath, assets)
	p.recorder.ObserveStageDuration("shells", time.Since(start))
	if err != nil {
		return err
	}
	for _, s := range shells {
		slog.Debug("HTML shell written", logfields.Layout(s.layout), logfields.Path(s.filename))
	}
	return nil
}

func (p *Pipeline) layoutShells() []shell {
	layouts := p.composer.Settings().Layouts
	out := make([]shell, 0, len(layouts))
	for _, l := range layouts {
		out = append(out, shell{layout: l.Name, template: l.Template, filename: l.Filename()})
	}
	return out
}

func directiveShells(cfg *bundle.BuildConfig) []shell {
	directives := cfg.HTMLShells()
	out := make([]shell, 0, len(directives))
	for _, d := range directives {
		out = append(out, shell{layout: d.Layout, template: d.Template, filename: d.Filename, minify: d.Minify})
	}
	return out
}
