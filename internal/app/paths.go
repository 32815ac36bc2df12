package app

import (
	"path/filepath"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	"git.home.luguber.info/inful/appserve/internal/config"
)

// resolvePath joins a relative p onto dir. Empty and absolute paths are
// returned unchanged.
func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// resolveBundle returns a copy of b whose output, layout and watch paths are
// rooted at dir, the directory the bundler resolves entries and aliases
// against. b itself is not modified.
func resolveBundle(b config.BundleConfig, dir string) config.BundleConfig {
	b.StaticRoot = resolvePath(dir, b.StaticRoot)
	layouts := make(bundle.Layouts, 0, len(b.Layouts))
	for _, l := range b.Layouts {
		l.Template = resolvePath(dir, l.Template)
		layouts = append(layouts, l)
	}
	b.Layouts = layouts
	watch := make([]string, 0, len(b.Watch))
	for _, w := range b.Watch {
		watch = append(watch, resolvePath(dir, w))
	}
	b.Watch = watch
	return b
}
