// Package commands implements the appserve subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/appserve/internal/config"
	"git.home.luguber.info/inful/appserve/internal/mode"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	// Out receives user-facing output. Nil means stdout.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"appserve.yaml" type:"path"`
	Env     string           `short:"e" help:"Override APP_ENV (development, test, production)"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the asset pipeline and serve the application"`
	Build  BuildCmd  `cmd:"" help:"Run the production build without serving"`
	Routes RoutesCmd `cmd:"" help:"List the routes discovered in the routes directory"`
	Init   InitCmd   `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// configureLogging replaces the default logger with the configured level
// and format. -v keeps debug regardless of the file.
func configureLogging(cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := cfg.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loaded is the resolved runtime input of a command.
type loaded struct {
	cfg    *config.Config
	mode   mode.Mode
	logger *slog.Logger
}

// load reads env files next to the config, decodes the environment, loads
// the configuration and resolves the mode. --env wins over APP_ENV.
func (c *CLI) load() (*loaded, error) {
	if err := config.LoadEnvFiles(filepath.Dir(c.Config)); err != nil {
		return nil, err
	}
	env, err := config.DecodeEnvironment()
	if err != nil {
		return nil, err
	}
	if c.Env != "" {
		env.AppEnv = c.Env
	}
	m, err := env.Mode()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.Config, env)
	if err != nil {
		return nil, err
	}
	logger := configureLogging(cfg.Logging, c.Verbose)
	return &loaded{cfg: cfg, mode: m, logger: logger}, nil
}
