package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/gzip"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/metrics"
)

// Built-in middleware names.
const (
	NameLogging   = "logging"
	NameRecovery  = "recovery"
	NameRequestID = "requestid"
	NameCORS      = "cors"
	NameCompress  = "compress"
	NameRateLimit = "ratelimit"
	NameMetrics   = "metrics"
	NameStatic    = "static"
)

// Deps are the shared collaborators of the built-in installers.
type Deps struct {
	Logger   *slog.Logger
	Adapter  *errors.HTTPErrorAdapter
	Recorder metrics.Recorder
	Registry *prom.Registry
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Adapter == nil {
		d.Adapter = errors.NewHTTPErrorAdapter(d.Logger)
	}
	if d.Recorder == nil {
		d.Recorder = metrics.NoopRecorder{}
	}
	return d
}

// Builtins returns a registry holding every built-in installer.
func Builtins(deps Deps) *Registry {
	deps = deps.withDefaults()
	r := NewRegistry(deps.Logger)
	for name, inst := range map[string]Installer{
		NameLogging:   useInstaller(Logging(deps.Logger)),
		NameRecovery:  useInstaller(Recovery(deps.Logger, deps.Adapter)),
		NameRequestID: InstallerFunc(installRequestID),
		NameCORS:      InstallerFunc(installCORS),
		NameCompress:  InstallerFunc(installCompress),
		NameRateLimit: InstallerFunc(installRateLimit),
		NameMetrics:   metricsInstaller{deps: deps},
		NameStatic:    InstallerFunc(installStatic),
	} {
		_ = r.Register(name, inst)
	}
	return r
}

// useInstaller installs a fixed middleware that takes no options.
func useInstaller(mw Func) Installer {
	return InstallerFunc(func(_ context.Context, app App, _ Options) error {
		app.Use(mw)
		return nil
	})
}

func installRequestID(_ context.Context, app App, opts Options) error {
	header, err := opts.String("header", DefaultRequestIDHeader)
	if err != nil {
		return err
	}
	app.Use(RequestID(header))
	return nil
}

func installCORS(_ context.Context, app App, opts Options) error {
	origins, err := opts.Strings("origins", []string{"*"})
	if err != nil {
		return err
	}
	methods, err := opts.Strings("methods", nil)
	if err != nil {
		return err
	}
	headers, err := opts.Strings("headers", nil)
	if err != nil {
		return err
	}
	maxAge, err := opts.Int("max_age", 86400)
	if err != nil {
		return err
	}
	app.Use(NewCORS(origins, methods, headers, maxAge).Handler)
	return nil
}

func installCompress(_ context.Context, app App, opts Options) error {
	level, err := opts.Int("level", gzip.DefaultCompression)
	if err != nil {
		return err
	}
	minSize, err := opts.Int("min_size", gzhttp.DefaultMinSize)
	if err != nil {
		return err
	}
	wrap, err := gzhttp.NewWrapper(gzhttp.CompressionLevel(level), gzhttp.MinSize(minSize))
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid compress options").
			WithContext("level", level).
			Build()
	}
	app.Use(func(next http.Handler) http.Handler { return wrap(next) })
	return nil
}

func installRateLimit(_ context.Context, app App, opts Options) error {
	rps, err := opts.Float("rps", 10)
	if err != nil {
		return err
	}
	burst, err := opts.Int("burst", 20)
	if err != nil {
		return err
	}
	idle, err := opts.Duration("idle", 5*time.Minute)
	if err != nil {
		return err
	}
	if rps <= 0 {
		return errors.ConfigError("ratelimit rps must be positive").WithContext("rps", rps).Build()
	}
	app.Use(NewRateLimiter(rps, burst, idle).Handler)
	return nil
}

type metricsInstaller struct {
	deps Deps
}

// Install mounts the exposition endpoint and records every request passing
// through its slot.
func (m metricsInstaller) Install(_ context.Context, app App, opts Options) error {
	path, err := opts.String("path", "/metrics")
	if err != nil {
		return err
	}
	if !strings.HasPrefix(path, "/") {
		return errors.ConfigError("metrics path must start with /").WithContext("path", path).Build()
	}
	app.Handle(path, metrics.HTTPHandler(m.deps.Registry))
	rec := m.deps.Recorder
	app.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			rec.ObserveHTTPRequest(r.Method, wrapped.statusCode, time.Since(start))
		})
	})
	return nil
}

func installStatic(_ context.Context, app App, opts Options) error {
	dir, err := opts.String("dir", "")
	if err != nil {
		return err
	}
	prefix, err := opts.String("prefix", "/")
	if err != nil {
		return err
	}
	if dir == "" {
		return errors.ConfigError("static middleware requires a dir option").Build()
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return errors.ConfigError("static dir does not exist").
			WithContext("dir", dir).
			WithCause(err).
			Build()
	}
	app.Use(Static(prefix, dir))
	return nil
}
