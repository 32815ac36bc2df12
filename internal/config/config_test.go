package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	ferrors "git.home.luguber.info/inful/appserve/internal/foundation/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "appserve.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cr3t")
	p := writeConfig(t, `
server:
  port: 8080
  startup_timeout: 30s
  middlewares:
    session:
      secret: ${SESSION_SECRET}
    cors: {}
    logging:
bundle:
  entry:
    app: src/app.js
    admin: [src/admin/index.js, src/admin/extra.js]
  layouts:
    main: layouts/main.tpl
    admin: layouts/admin.tpl
  public_path: /assets/
`)

	cfg, err := Load(p, Environment{})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.StartupTimeout)
	assert.Equal(t, []string{"session", "cors", "logging"}, cfg.Server.Middlewares.Names())
	assert.Equal(t, map[string]any{"secret": "s3cr3t"}, cfg.Server.Middlewares[0].Options)
	assert.Equal(t, map[string]any{}, cfg.Server.Middlewares[2].Options)

	assert.Equal(t, bundle.EntryNamed, cfg.Bundle.Entry.Kind())
	assert.Equal(t, "/assets", cfg.Bundle.PublicPath, "trailing slash is trimmed")
	assert.Equal(t, bundle.Layouts{
		{Name: "main", Template: "layouts/main.tpl"},
		{Name: "admin", Template: "layouts/admin.tpl"},
	}, cfg.Bundle.Layouts)

	// defaults
	assert.Equal(t, DefaultRoutesDir, cfg.Server.RoutesDir)
	assert.Equal(t, DefaultStaticRoot, cfg.Bundle.StaticRoot)
	assert.Equal(t, bundle.DefaultHotClient, cfg.Bundle.HotClient)
	assert.Equal(t, DefaultDashboardPort, cfg.Bundle.Dashboard())
	assert.Equal(t, []string{"src", filepath.Join("src", "admin")}, cfg.Bundle.Watch)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
}

func TestLoad_ZeroDashboardPortDisables(t *testing.T) {
	cfg, err := Load(writeConfig(t, "bundle:\n  entry: src/app.js\n  dashboard_port: 0\n"), Environment{})
	require.NoError(t, err)
	require.NotNil(t, cfg.Bundle.DashboardPort)
	assert.Equal(t, 0, cfg.Bundle.Dashboard())
	assert.Equal(t, 0, cfg.Bundle.Settings().DashboardPort)
}

func TestLoad_RootPublicPath(t *testing.T) {
	cfg, err := Load(writeConfig(t, "bundle:\n  entry: src/app.js\n  public_path: /\n"), Environment{})
	require.NoError(t, err)
	assert.Equal(t, "/", cfg.Bundle.PublicPath)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	p := writeConfig(t, "bundle:\n  entry: src/app.js\n  product: base\n")
	cfg, err := Load(p, Environment{Port: 9999, Product: "shop"})
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "shop", cfg.Bundle.Product)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing entry", "server:\n  port: 3000\n", "bundle.entry"},
		{"unknown key", "bundle:\n  entry: a.js\n  bogus: 1\n", "parse"},
		{"bad public path", "bundle:\n  entry: a.js\n  public_path: static\n", "bundle.public_path"},
		{"negative dashboard port", "bundle:\n  entry: a.js\n  dashboard_port: -1\n", "bundle.dashboard_port"},
		{"bad port", "server:\n  port: 70000\nbundle:\n  entry: a.js\n", "server.port"},
		{"duplicate middleware", "server:\n  middlewares:\n    cors: {}\n    cors: {}\nbundle:\n  entry: a.js\n", "declared twice"},
		{"scalar middleware options", "server:\n  middlewares:\n    cors: yes\nbundle:\n  entry: a.js\n", "must be a mapping"},
		{"empty layout template", "bundle:\n  entry: a.js\n  layouts:\n    main: \"\"\n", "no template"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), Environment{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), Environment{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestInit(t *testing.T) {
	p := filepath.Join(t.TempDir(), "appserve.yaml")
	require.NoError(t, Init(p, false))

	cfg, err := Load(p, Environment{})
	require.NoError(t, err)
	assert.Equal(t, []string{"requestid", "logging", "recovery", "cors", "compress"}, cfg.Server.Middlewares.Names())
	assert.Len(t, cfg.Bundle.Layouts, 2)

	err = Init(p, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	require.NoError(t, Init(p, true))
}
