// Package config loads the appserve configuration file and the process
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	ferrors "git.home.luguber.info/inful/appserve/internal/foundation/errors"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "appserve.yaml"

// Config is the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Bundle  BundleConfig  `yaml:"bundle"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener and the startup sequence.
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	RoutesDir         string        `yaml:"routes_dir"`
	Middlewares       Middlewares   `yaml:"middlewares"`
	StartupTimeout    time.Duration `yaml:"startup_timeout"` // 0 waits forever
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// BundleConfig configures the asset pipeline.
type BundleConfig struct {
	Entry         bundle.Entry   `yaml:"entry"`
	Layouts       bundle.Layouts `yaml:"layouts"`
	StaticRoot    string         `yaml:"static_root"`
	PublicPath    string         `yaml:"public_path"`
	AssetsRoot    string         `yaml:"assets_root"`
	Product       string         `yaml:"product"`
	HotClient     string         `yaml:"hot_client"`
	HotHeartbeat  time.Duration  `yaml:"hot_heartbeat"`
	DashboardPort *int           `yaml:"dashboard_port"` // 0 disables the dashboard
	Watch         []string       `yaml:"watch"`
	Debounce      time.Duration  `yaml:"debounce"`
}

// Settings returns the composer inputs.
func (b BundleConfig) Settings() bundle.Settings {
	return bundle.Settings{
		Entry:         b.Entry,
		Layouts:       b.Layouts,
		StaticRoot:    b.StaticRoot,
		PublicPath:    b.PublicPath,
		Product:       b.Product,
		AssetsRoot:    b.AssetsRoot,
		HotClient:     b.HotClient,
		DashboardPort: b.Dashboard(),
	}
}

// Dashboard returns the dashboard port, 0 when disabled or unset.
func (b BundleConfig) Dashboard() int {
	if b.DashboardPort == nil {
		return 0
	}
	return *b.DashboardPort
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configPath, expands ${VAR} references, applies env overrides and
// defaults, and validates the result.
func Load(configPath string, env Environment) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ferrors.ConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).
			WithContext("path", configPath).
			Build()
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	env.apply(cfg)
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML after environment expansion. Unknown keys are rejected.
// No defaults are applied.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse config file").
			Fatal().
			Build()
	}
	return &cfg, nil
}

// Init writes an example configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithContext("path", configPath).
			Build()
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

const exampleConfig = `# appserve configuration
server:
  port: 3000
  routes_dir: server/routes
  # startup_timeout: 60s
  middlewares:
    requestid: {}
    logging: {}
    recovery: {}
    cors:
      origins: ["*"]
    compress: {}

bundle:
  entry:
    app: src/app.js
    admin: src/admin.js
  layouts:
    main: layouts/main.html
    admin: layouts/admin.html
  static_root: dist
  public_path: /static
  assets_root: assets
  product: ${PRODUCT}
  dashboard_port: 1337

logging:
  level: info
  format: text
`
