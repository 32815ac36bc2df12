package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	ferrors "git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/hot"
	"git.home.luguber.info/inful/appserve/internal/logfields"
	"git.home.luguber.info/inful/appserve/internal/metrics"
)

// startBackground launches the rebuild worker, queues the initial build and
// starts the watcher and dashboard. Background work outlives the startup
// context and stops on Close.
func (p *Pipeline) startBackground(cfg *bundle.BuildConfig) error {
	runCtx, cancel := context.WithCancel(context.Background())
	rebuildReq := make(chan struct{}, 1)
	request := func() {
		select {
		case rebuildReq <- struct{}{}:
		default:
		}
	}

	var w *watcher
	if len(p.watch) > 0 {
		var err error
		w, err = newWatcher(p.watch, cfg.OutputPath, newDebouncer(p.debounce, request))
		if err != nil {
			cancel()
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "start file watcher").Fatal().Build()
		}
	}

	var dash *dashboard
	for _, pl := range cfg.PluginsOf(bundle.PluginDashboard) {
		if port := pl.(bundle.DashboardPlugin).Port; port > 0 {
			d, err := startDashboard(port, p)
			if err != nil {
				slog.Warn("Dashboard unavailable", slog.Int("port", port), logfields.Error(err))
				continue
			}
			dash = d
			break
		}
	}

	p.mu.Lock()
	p.stop = cancel
	p.watcher = w
	p.dashboard = dash
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.rebuildWorker(runCtx, rebuildReq)
	}()
	if w != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run()
		}()
	}
	request()
	return nil
}

// rebuildWorker processes one rebuild at a time. Requests arriving during a
// rebuild collapse into a single follow-up.
func (p *Pipeline) rebuildWorker(ctx context.Context, rebuildReq <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			p.gate.end()
			return
		case <-rebuildReq:
			p.processRebuild(ctx)
		}
	}
}

// processRebuild rebuilds and notifies hot clients. Failures are reported and
// the previous output stays in place.
func (p *Pipeline) processRebuild(ctx context.Context) {
	p.mu.RLock()
	b := p.bundler
	p.mu.RUnlock()
	if b == nil {
		return
	}

	p.gate.begin()
	defer p.gate.end()
	p.hub.Publish(hot.Event{Action: hot.ActionBuilding})

	start := time.Now()
	res, err := b.Rebuild(ctx)
	if ctx.Err() != nil {
		return
	}
	p.recorder.ObserveBuildDuration(time.Since(start))
	summary := p.record(res, err, start)

	if !summary.OK {
		rerr := ferrors.RebuildError("rebuild failed").
			WithContext("errors", summary.Errors).
			WithCause(err).
			Build()
		slog.Warn("Rebuild failed; keeping previous bundle",
			logfields.Error(rerr),
			slog.Any("diagnostics", summary.Errors))
		p.recorder.IncRebuild(metrics.BuildOutcomeFailed)
		p.hub.Publish(hot.Event{Action: hot.ActionBuilt, Errors: summary.Errors, Warnings: summary.Warnings})
		return
	}

	p.recorder.IncRebuild(metrics.BuildOutcomeSuccess)
	slog.Info("Rebuild complete", logfields.Duration(time.Since(start)))
	p.hub.Publish(hot.Event{
		Action:   hot.ActionBuilt,
		Hash:     strconv.FormatInt(start.UnixNano(), 10),
		Warnings: summary.Warnings,
	})
}
