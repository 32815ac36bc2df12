package bundle

import "maps"

// PluginKind identifies a build directive.
type PluginKind string

const (
	PluginDefine         PluginKind = "define"
	PluginHotReplacement PluginKind = "hot-replacement"
	PluginDashboard      PluginKind = "dashboard"
	PluginHTMLShell      PluginKind = "html-shell"
	PluginMinify         PluginKind = "minify"
	PluginExtractStyle   PluginKind = "extract-style"
)

// Plugin is a build directive carried by a BuildConfig.
type Plugin interface {
	Kind() PluginKind
}

// DefinePlugin replaces identifiers with constant expressions at build time.
type DefinePlugin struct {
	Values map[string]string
}

// HotReplacementPlugin enables hot module replacement.
type HotReplacementPlugin struct{}

// DashboardPlugin serves build status on a separate port.
type DashboardPlugin struct {
	Port int
}

// HTMLShellPlugin emits one HTML page for a layout. Minify collapses the
// page's whitespace.
type HTMLShellPlugin struct {
	Layout   string
	Template string
	Filename string
	Minify   bool
}

// MinifyPlugin minifies script output.
type MinifyPlugin struct {
	Target    string
	SourceMap bool
}

// ExtractStylePlugin writes styles to separate files instead of inlining them.
// Filename is relative to the output path; "[name]" is the bundle name.
type ExtractStylePlugin struct {
	Filename string
}

func (DefinePlugin) Kind() PluginKind         { return PluginDefine }
func (HotReplacementPlugin) Kind() PluginKind { return PluginHotReplacement }
func (DashboardPlugin) Kind() PluginKind      { return PluginDashboard }
func (HTMLShellPlugin) Kind() PluginKind      { return PluginHTMLShell }
func (MinifyPlugin) Kind() PluginKind         { return PluginMinify }
func (ExtractStylePlugin) Kind() PluginKind   { return PluginExtractStyle }

func clonePlugin(p Plugin) Plugin {
	if d, ok := p.(DefinePlugin); ok {
		return DefinePlugin{Values: maps.Clone(d.Values)}
	}
	return p
}
