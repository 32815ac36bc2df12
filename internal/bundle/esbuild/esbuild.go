// Package esbuild binds a composed BuildConfig to the esbuild engine.
package esbuild

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	"git.home.luguber.info/inful/appserve/internal/hot"
)

const (
	entryNamespace = "appserve-entry"
	hotNamespace   = "appserve-hot"
)

// Bundler runs esbuild for one BuildConfig. It is safe for concurrent use;
// passes are serialized.
type Bundler struct {
	opts api.BuildOptions

	mu   sync.Mutex
	bctx api.BuildContext
}

// NewFactory returns a bundle.Factory resolving relative paths against workDir.
func NewFactory(workDir string) bundle.Factory {
	return func(cfg *bundle.BuildConfig) (bundle.Bundler, error) {
		return New(cfg, workDir)
	}
}

// New translates cfg into esbuild options.
func New(cfg *bundle.BuildConfig, workDir string) (*Bundler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("esbuild: nil build config")
	}
	if err := cfg.Entry.Validate(); err != nil {
		return nil, fmt.Errorf("esbuild: %w", err)
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("esbuild: resolve working directory: %w", err)
	}
	opts, err := buildOptions(cfg, abs)
	if err != nil {
		return nil, err
	}
	return &Bundler{opts: opts}, nil
}

// Options returns the translated esbuild options.
func (b *Bundler) Options() api.BuildOptions { return b.opts }

// Build runs a one-shot pass.
func (b *Bundler) Build(ctx context.Context) (bundle.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := time.Now()
	res, err := wait(ctx, func() api.BuildResult { return api.Build(b.opts) }, nil)
	if err != nil {
		return bundle.Result{}, err
	}
	return toResult(res, time.Since(start)), nil
}

// Rebuild runs an incremental pass, creating the build context on first use.
func (b *Bundler) Rebuild(ctx context.Context) (bundle.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bctx == nil {
		bctx, cerr := api.Context(b.opts)
		if cerr != nil {
			return bundle.Result{Diagnostics: toDiagnostics(cerr.Errors, bundle.SeverityError)},
				fmt.Errorf("esbuild: create build context: %s", joinMessages(cerr.Errors))
		}
		b.bctx = bctx
	}
	start := time.Now()
	bctx := b.bctx
	res, err := wait(ctx, bctx.Rebuild, bctx.Cancel)
	if err != nil {
		return bundle.Result{}, err
	}
	return toResult(res, time.Since(start)), nil
}

// Dispose releases the incremental build context.
func (b *Bundler) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bctx != nil {
		b.bctx.Dispose()
		b.bctx = nil
	}
}

func wait(ctx context.Context, run func() api.BuildResult, cancel func()) (api.BuildResult, error) {
	done := make(chan api.BuildResult, 1)
	go func() { done <- run() }()
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
			<-done
		}
		return api.BuildResult{}, ctx.Err()
	}
}

func buildOptions(cfg *bundle.BuildConfig, workDir string) (api.BuildOptions, error) {
	outdir := cfg.OutputPath
	if !filepath.IsAbs(outdir) {
		outdir = filepath.Join(workDir, outdir)
	}
	opts := api.BuildOptions{
		AbsWorkingDir:     workDir,
		Bundle:            true,
		Write:             true,
		Outdir:            outdir,
		PublicPath:        cfg.PublicPath,
		EntryNames:        "[name]",
		AssetNames:        "[name]",
		ChunkNames:        "chunks/[name]-[hash]",
		Platform:          api.PlatformBrowser,
		Format:            api.FormatIIFE,
		LogLevel:          api.LogLevelSilent,
		ResolveExtensions: append([]string(nil), cfg.Resolve.Extensions...),
		Loader:            loaders(cfg),
		Define:            cfg.Defines(),
	}

	for _, b := range cfg.Entry.Bundles() {
		opts.EntryPointsAdvanced = append(opts.EntryPointsAdvanced, api.EntryPoint{
			InputPath:  entryNamespace + ":" + b.Name,
			OutputPath: b.Name,
		})
	}

	if cfg.Devtool != "" {
		opts.Sourcemap = api.SourceMapInline
	}
	if m, ok := cfg.Minify(); ok {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		if m.SourceMap {
			opts.Sourcemap = api.SourceMapExternal
		}
		if t, ok := targets[m.Target]; ok {
			opts.Target = t
		}
	}

	aliasPlugin, err := newAliasPlugin(cfg.Resolve.Aliases, workDir)
	if err != nil {
		return api.BuildOptions{}, err
	}
	opts.Plugins = []api.Plugin{
		entryPlugin(cfg.Entry, workDir),
		hotClientPlugin(),
		aliasPlugin,
	}
	return opts, nil
}

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2017": api.ES2017,
	"es2020": api.ES2020,
	"esnext": api.ESNext,
}

var loaderFor = map[bundle.RuleKind]api.Loader{
	bundle.KindScript:     api.LoaderJS,
	bundle.KindTypeScript: api.LoaderTS,
	bundle.KindStyle:      api.LoaderCSS,
	bundle.KindAsset:      api.LoaderFile,
	// The engine has no single-file-component compiler; the source is
	// exposed as a string module.
	bundle.KindFramework: api.LoaderText,
}

var knownExtensions = []string{".js", ".ts", ".vue", ".css", ".png", ".jpg", ".gif", ".svg", ".otf", ".ttf"}

// loaders maps each known extension to the loader of the first rule that
// matches a file with that extension.
func loaders(cfg *bundle.BuildConfig) map[string]api.Loader {
	out := make(map[string]api.Loader)
	for _, ext := range knownExtensions {
		r, ok := cfg.RuleFor("module" + ext)
		if !ok {
			continue
		}
		if l, ok := loaderFor[r.Kind]; ok {
			out[ext] = l
		}
	}
	return out
}

// entryPlugin turns each bundle into a virtual module importing its modules in
// order, so list entries behave as one bundle.
func entryPlugin(entry bundle.Entry, workDir string) api.Plugin {
	sources := make(map[string]string)
	for _, b := range entry.Bundles() {
		var sb strings.Builder
		for _, m := range b.Modules {
			sb.WriteString("import ")
			sb.WriteString(strconv.Quote(importSpecifier(m)))
			sb.WriteString(";\n")
		}
		sources[b.Name] = sb.String()
	}
	return api.Plugin{
		Name: "appserve-entry",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + entryNamespace + ":"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, entryNamespace+":"),
						Namespace: entryNamespace,
					}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: entryNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					src, ok := sources[args.Path]
					if !ok {
						return api.OnLoadResult{}, fmt.Errorf("unknown bundle %q", args.Path)
					}
					return api.OnLoadResult{Contents: &src, ResolveDir: workDir, Loader: api.LoaderJS}, nil
				})
		},
	}
}

func importSpecifier(module string) string {
	if _, ok := hot.ParseClientModule(module); ok {
		return module
	}
	if filepath.IsAbs(module) || strings.HasPrefix(module, ".") {
		return filepath.ToSlash(module)
	}
	return "./" + filepath.ToSlash(module)
}

// hotClientPlugin resolves the hot client specifier to the embedded script.
func hotClientPlugin() api.Plugin {
	return api.Plugin{
		Name: "appserve-hot-client",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + regexp.QuoteMeta(hot.ClientModule) + `(\?.*)?$`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: args.Path, Namespace: hotNamespace}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: hotNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					opts, _ := hot.ParseClientModule(args.Path)
					src := hot.ClientScript(opts.Reload)
					return api.OnLoadResult{Contents: &src, Loader: api.LoaderJS}, nil
				})
		},
	}
}

type alias struct {
	name   string
	exact  bool
	target string
}

// newAliasPlugin rewrites aliased specifiers. A trailing "$" on a key matches
// the bare name only; other keys also match "key/sub/path". Targets that exist
// under workDir resolve as paths, anything else as a package specifier.
func newAliasPlugin(aliases map[string]string, workDir string) (api.Plugin, error) {
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]alias, 0, len(keys))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		a := alias{name: strings.TrimSuffix(k, "$"), exact: strings.HasSuffix(k, "$"), target: aliases[k]}
		if a.name == "" {
			return api.Plugin{}, fmt.Errorf("esbuild: empty alias key %q", k)
		}
		if !filepath.IsAbs(a.target) {
			if _, err := os.Stat(filepath.Join(workDir, a.target)); err == nil {
				a.target = filepath.Join(workDir, a.target)
			}
		}
		list = append(list, a)
		if a.exact {
			parts = append(parts, regexp.QuoteMeta(a.name)+"$")
		} else {
			parts = append(parts, regexp.QuoteMeta(a.name)+"(/.*)?$")
		}
	}

	return api.Plugin{
		Name: "appserve-alias",
		Setup: func(build api.PluginBuild) {
			if len(list) == 0 {
				return
			}
			filter := "^(" + strings.Join(parts, "|") + ")"
			build.OnResolve(api.OnResolveOptions{Filter: filter},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					rewritten, ok := rewriteAlias(list, args.Path)
					if !ok {
						return api.OnResolveResult{}, nil
					}
					res := build.Resolve(rewritten, api.ResolveOptions{
						Importer:   args.Importer,
						ResolveDir: args.ResolveDir,
						Kind:       args.Kind,
					})
					if len(res.Errors) > 0 {
						return api.OnResolveResult{Errors: res.Errors}, nil
					}
					return api.OnResolveResult{Path: res.Path, External: res.External, Namespace: res.Namespace}, nil
				})
		},
	}, nil
}

func rewriteAlias(list []alias, spec string) (string, bool) {
	for _, a := range list {
		if spec == a.name {
			return a.target, true
		}
		if !a.exact && strings.HasPrefix(spec, a.name+"/") {
			return a.target + strings.TrimPrefix(spec, a.name), true
		}
	}
	return "", false
}

func toResult(res api.BuildResult, d time.Duration) bundle.Result {
	out := bundle.Result{Duration: d}
	out.Diagnostics = append(out.Diagnostics, toDiagnostics(res.Errors, bundle.SeverityError)...)
	out.Diagnostics = append(out.Diagnostics, toDiagnostics(res.Warnings, bundle.SeverityWarning)...)
	for _, f := range res.OutputFiles {
		out.OutputFiles = append(out.OutputFiles, f.Path)
	}
	return out
}

func toDiagnostics(msgs []api.Message, sev bundle.Severity) []bundle.Diagnostic {
	out := make([]bundle.Diagnostic, 0, len(msgs))
	for _, m := range msgs {
		d := bundle.Diagnostic{Severity: sev, Text: m.Text}
		if m.Location != nil {
			d.File = m.Location.File
			d.Line = m.Location.Line
			d.Column = m.Location.Column
		}
		out = append(out, d)
	}
	return out
}

func joinMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "; ")
}
