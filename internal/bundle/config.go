package bundle

import (
	"maps"
	"slices"
)

// Resolve controls module resolution.
type Resolve struct {
	Extensions []string
	Aliases    map[string]string
}

// BuildConfig is the composed bundler configuration for one run. Values
// returned by the Composer are never mutated; derive variants with Merge.
type BuildConfig struct {
	Entry      Entry
	OutputPath string
	PublicPath string
	Rules      []Rule
	Plugins    []Plugin
	Resolve    Resolve
	Devtool    string
}

// Clone returns a deep copy of c.
func (c *BuildConfig) Clone() *BuildConfig {
	if c == nil {
		return nil
	}
	out := &BuildConfig{
		Entry:      c.Entry.Clone(),
		OutputPath: c.OutputPath,
		PublicPath: c.PublicPath,
		Devtool:    c.Devtool,
		Resolve: Resolve{
			Extensions: slices.Clone(c.Resolve.Extensions),
			Aliases:    maps.Clone(c.Resolve.Aliases),
		},
	}
	for _, r := range c.Rules {
		out.Rules = append(out.Rules, r.clone())
	}
	for _, p := range c.Plugins {
		out.Plugins = append(out.Plugins, clonePlugin(p))
	}
	return out
}

// RuleFor returns the first rule matching path, ignoring pre-enforced rules.
func (c *BuildConfig) RuleFor(path string) (Rule, bool) {
	for _, r := range c.Rules {
		if r.Enforce == EnforcePre {
			continue
		}
		if r.Matches(path) {
			return r, true
		}
	}
	return Rule{}, false
}

// HasPlugin reports whether a plugin of kind is present.
func (c *BuildConfig) HasPlugin(kind PluginKind) bool {
	return slices.ContainsFunc(c.Plugins, func(p Plugin) bool { return p.Kind() == kind })
}

// PluginsOf returns plugins of kind in order.
func (c *BuildConfig) PluginsOf(kind PluginKind) []Plugin {
	var out []Plugin
	for _, p := range c.Plugins {
		if p.Kind() == kind {
			out = append(out, p)
		}
	}
	return out
}

// HTMLShells returns the shell directives in layout declaration order.
func (c *BuildConfig) HTMLShells() []HTMLShellPlugin {
	var out []HTMLShellPlugin
	for _, p := range c.Plugins {
		if s, ok := p.(HTMLShellPlugin); ok {
			out = append(out, s)
		}
	}
	return out
}

// Defines merges every Define plugin; later plugins win.
func (c *BuildConfig) Defines() map[string]string {
	out := make(map[string]string)
	for _, p := range c.Plugins {
		if d, ok := p.(DefinePlugin); ok {
			maps.Copy(out, d.Values)
		}
	}
	return out
}

// Minify returns the minify directive if present.
func (c *BuildConfig) Minify() (MinifyPlugin, bool) {
	for _, p := range c.Plugins {
		if m, ok := p.(MinifyPlugin); ok {
			return m, true
		}
	}
	return MinifyPlugin{}, false
}

// ExtractStyle returns the style extraction directive if present.
func (c *BuildConfig) ExtractStyle() (ExtractStylePlugin, bool) {
	for _, p := range c.Plugins {
		if e, ok := p.(ExtractStylePlugin); ok {
			return e, true
		}
	}
	return ExtractStylePlugin{}, false
}
