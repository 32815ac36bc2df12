package pipeline

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appserve/internal/bundle"
)

type staticMount struct {
	prefix string
	dir    string
}

type fakeServer struct {
	mu          sync.Mutex
	names       []string
	middlewares []func(http.Handler) http.Handler
	static      []staticMount
}

func (s *fakeServer) UseMiddleware(name string, mw func(http.Handler) http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.middlewares = append(s.middlewares, mw)
}

func (s *fakeServer) ServeStatic(prefix, dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.static = append(s.static, staticMount{prefix: prefix, dir: dir})
}

// handler chains the attached middlewares in registration order around a 404.
func (s *fakeServer) handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	var h http.Handler = http.NotFoundHandler()
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		h = s.middlewares[i](h)
	}
	return h
}

type fakeBundler struct {
	outDir   string
	files    map[string]string // written under outDir on a successful Build
	build    bundle.Result
	buildErr error
	rebuild  func(n int) (bundle.Result, error)

	builds   atomic.Int32
	rebuilds atomic.Int32
	disposed atomic.Bool
}

func (b *fakeBundler) Build(context.Context) (bundle.Result, error) {
	b.builds.Add(1)
	if b.buildErr == nil && !b.build.HasErrors() && b.outDir != "" {
		if err := os.MkdirAll(b.outDir, 0o755); err != nil {
			return bundle.Result{}, err
		}
		for name, body := range b.files {
			if err := os.WriteFile(filepath.Join(b.outDir, name), []byte(body), 0o600); err != nil {
				return bundle.Result{}, err
			}
		}
	}
	return b.build, b.buildErr
}

func (b *fakeBundler) Rebuild(context.Context) (bundle.Result, error) {
	n := int(b.rebuilds.Add(1))
	if b.rebuild != nil {
		return b.rebuild(n)
	}
	return bundle.Result{}, nil
}

func (b *fakeBundler) Dispose() { b.disposed.Store(true) }

type factoryRecorder struct {
	mu      sync.Mutex
	configs []*bundle.BuildConfig
	bundler *fakeBundler
}

func (f *factoryRecorder) factory(cfg *bundle.BuildConfig) (bundle.Bundler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	return f.bundler, nil
}

func (f *factoryRecorder) last() *bundle.BuildConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs[len(f.configs)-1]
}

type fixture struct {
	dir      string
	out      string
	settings bundle.Settings
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	layouts := filepath.Join(dir, "layouts")
	require.NoError(t, os.MkdirAll(layouts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(layouts, "main.tpl"),
		[]byte("<!doctype html><html><head><title>main</title></head><body><div id=\"app\"></div></body></html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(layouts, "admin.tpl"),
		[]byte("<html><body><div id=\"admin\"></div></body></html>"), 0o600))

	out := filepath.Join(dir, "dist")
	return fixture{
		dir: dir,
		out: out,
		settings: bundle.Settings{
			Entry: bundle.Named(
				bundle.NamedEntry{Name: "app", Entry: bundle.Single("src/app.js")},
				bundle.NamedEntry{Name: "admin", Entry: bundle.Single("src/admin.js")},
			),
			Layouts: bundle.Layouts{
				{Name: "main", Template: filepath.Join(layouts, "main.tpl")},
				{Name: "admin", Template: filepath.Join(layouts, "admin.tpl")},
			},
			StaticRoot: out,
			PublicPath: "/static",
			HotClient:  "hot-client",
		},
	}
}
