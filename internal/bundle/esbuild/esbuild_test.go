package esbuild

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	"git.home.luguber.info/inful/appserve/internal/mode"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func compose(t *testing.T, m mode.Mode, s bundle.Settings) *bundle.BuildConfig {
	t.Helper()
	cfg, err := bundle.NewComposer(s).Compose(m)
	require.NoError(t, err)
	return cfg
}

func TestBuildOptionsTranslation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "assets", "shop", "x.js"), "")
	cfg := compose(t, mode.Production, bundle.Settings{
		Entry: bundle.Named(
			bundle.NamedEntry{Name: "app", Entry: bundle.Single("src/app.js")},
			bundle.NamedEntry{Name: "admin", Entry: bundle.Single("src/admin.js")},
		),
		StaticRoot: "dist",
		PublicPath: "/static",
		Product:    "shop",
		AssetsRoot: "assets",
	})

	b, err := New(cfg, dir)
	require.NoError(t, err)
	opts := b.Options()

	assert.Equal(t, filepath.Join(dir, "dist"), opts.Outdir)
	assert.Equal(t, []api.EntryPoint{
		{InputPath: "appserve-entry:app", OutputPath: "app"},
		{InputPath: "appserve-entry:admin", OutputPath: "admin"},
	}, opts.EntryPointsAdvanced)
	assert.Equal(t, `"production"`, opts.Define["process.env.NODE_ENV"])
	assert.True(t, opts.MinifyWhitespace)
	assert.Equal(t, api.SourceMapExternal, opts.Sourcemap)
	assert.Equal(t, api.ES2017, opts.Target)
	assert.Equal(t, api.LoaderFile, opts.Loader[".png"])
	assert.Equal(t, api.LoaderTS, opts.Loader[".ts"])
	assert.Equal(t, api.LoaderCSS, opts.Loader[".css"])
	assert.Len(t, opts.Plugins, 3)
}

func TestNewRejectsInvalidEntry(t *testing.T) {
	_, err := New(&bundle.BuildConfig{}, t.TempDir())
	require.Error(t, err)
}

func TestRewriteAlias(t *testing.T) {
	list := []alias{
		{name: "vue", exact: true, target: "vue/dist/vue.esm.js"},
		{name: "@", target: "/abs/assets/shop"},
	}
	got, ok := rewriteAlias(list, "vue")
	require.True(t, ok)
	assert.Equal(t, "vue/dist/vue.esm.js", got)

	_, ok = rewriteAlias(list, "vue/other")
	assert.False(t, ok, "exact alias only matches the bare name")

	got, ok = rewriteAlias(list, "@/components/x.js")
	require.True(t, ok)
	assert.Equal(t, "/abs/assets/shop/components/x.js", got)

	_, ok = rewriteAlias(list, "@vue/runtime")
	assert.False(t, ok)
}

func TestImportSpecifier(t *testing.T) {
	assert.Equal(t, "./src/app.js", importSpecifier("src/app.js"))
	assert.Equal(t, "../lib/x.js", importSpecifier("../lib/x.js"))
	assert.Equal(t, "appserve-hot-client?reload=true", importSpecifier("appserve-hot-client?reload=true"))
}

func TestBuildWritesBundles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "util.js"), "export const greet = (n) => 'hi ' + n;\n")
	writeFile(t, filepath.Join(dir, "src", "app.js"), "import { greet } from './util';\nconsole.log(greet(process.env.NODE_ENV));\n")
	writeFile(t, filepath.Join(dir, "src", "admin.js"), "console.log('admin');\n")

	cfg := compose(t, mode.Production, bundle.Settings{
		Entry: bundle.Named(
			bundle.NamedEntry{Name: "app", Entry: bundle.Single("src/app.js")},
			bundle.NamedEntry{Name: "admin", Entry: bundle.Single("src/admin.js")},
		),
		StaticRoot: "dist",
		PublicPath: "/static",
	})
	b, err := New(cfg, dir)
	require.NoError(t, err)
	defer b.Dispose()

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	require.False(t, res.HasErrors(), res.Summary())

	app, err := os.ReadFile(filepath.Join(dir, "dist", "app.js"))
	require.NoError(t, err)
	assert.Contains(t, string(app), "production")
	assert.FileExists(t, filepath.Join(dir, "dist", "admin.js"))
}

func TestBuildReportsCompileErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "app.js"), "let x = ;\n")

	cfg := compose(t, mode.Production, bundle.Settings{
		Entry:      bundle.Single("src/app.js"),
		StaticRoot: "dist",
		PublicPath: "/static",
	})
	b, err := New(cfg, dir)
	require.NoError(t, err)

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	require.True(t, res.HasErrors())
	assert.Contains(t, res.Errors()[0].File, "app.js")
	assert.NoFileExists(t, filepath.Join(dir, "dist", "main.js"))
}

func TestRebuildIncludesHotClient(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "app.js"), "console.log('app');\n")

	cfg := compose(t, mode.Development, bundle.Settings{
		Entry:      bundle.Named(bundle.NamedEntry{Name: "app", Entry: bundle.Single("src/app.js")}),
		StaticRoot: "dist",
		PublicPath: "/static",
	})
	b, err := New(cfg, dir)
	require.NoError(t, err)
	defer b.Dispose()

	res, err := b.Rebuild(context.Background())
	require.NoError(t, err)
	require.False(t, res.HasErrors(), res.Summary())

	out, err := os.ReadFile(filepath.Join(dir, "dist", "app.js"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "/__hot")

	writeFile(t, filepath.Join(dir, "src", "app.js"), "console.log('changed');\n")
	res, err = b.Rebuild(context.Background())
	require.NoError(t, err)
	require.False(t, res.HasErrors(), res.Summary())
	out, err = os.ReadFile(filepath.Join(dir, "dist", "app.js"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "changed")
}
