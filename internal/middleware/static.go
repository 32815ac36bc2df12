package middleware

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Static serves existing files of dir under prefix for GET and HEAD.
// Anything else, including misses and directories, falls through to next.
func Static(prefix, dir string) Func {
	prefix = "/" + strings.Trim(prefix, "/")
	files := http.FileServer(http.Dir(dir))
	if prefix != "/" {
		files = http.StripPrefix(prefix, files)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			rel, ok := underPrefix(r.URL.Path, prefix)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+rel)))
			if fi, err := os.Stat(name); err != nil || fi.IsDir() {
				next.ServeHTTP(w, r)
				return
			}
			files.ServeHTTP(w, r)
		})
	}
}

func underPrefix(p, prefix string) (string, bool) {
	if prefix == "/" {
		return p, true
	}
	if p == prefix {
		return "", true
	}
	if strings.HasPrefix(p, prefix+"/") {
		return strings.TrimPrefix(p, prefix), true
	}
	return "", false
}
