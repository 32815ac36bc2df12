package pipeline

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// buildGate lets requests wait for an in-flight build.
type buildGate struct {
	mu   sync.Mutex
	done chan struct{} // nil when idle
}

func (g *buildGate) begin() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done == nil {
		g.done = make(chan struct{})
	}
}

func (g *buildGate) end() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done != nil {
		close(g.done)
		g.done = nil
	}
}

func (g *buildGate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.done
	g.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newRebuildMiddleware serves files from outputPath under publicPath. Requests
// for that prefix wait while a build is in flight; a missing file falls
// through to next. With a root publicPath every path matches the prefix, so
// only requests for files already in outputPath wait.
func newRebuildMiddleware(publicPath, outputPath string, gate *buildGate) func(http.Handler) http.Handler {
	prefix := strings.TrimRight(publicPath, "/") + "/"
	root := prefix == "/"
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
			rel := path.Clean("/" + strings.TrimPrefix(r.URL.Path, prefix))
			file := filepath.Join(outputPath, filepath.FromSlash(rel))
			if root && !isFile(file) {
				next.ServeHTTP(w, r)
				return
			}
			if err := gate.wait(r.Context()); err != nil {
				http.Error(w, "build in progress", http.StatusServiceUnavailable)
				return
			}
			if !isFile(file) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeFile(w, r, file)
		})
	}
}

func isFile(name string) bool {
	fi, err := os.Stat(name)
	return err == nil && !fi.IsDir()
}
