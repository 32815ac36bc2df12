package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	ferrors "git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/mode"
)

// Environment is the subset of the process environment appserve reads.
type Environment struct {
	AppEnv  string `env:"APP_ENV"`
	NodeEnv string `env:"NODE_ENV"`
	Port    int    `env:"PORT"`
	Product string `env:"PRODUCT"`
}

// envFiles are loaded in order; values already set are never overridden, so
// .env.local takes precedence over .env.
var envFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads the env files found in dir into the process environment.
func LoadEnvFiles(dir string) error {
	for _, name := range envFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load env file").
				Fatal().
				WithContext("path", p).
				Build()
		}
		slog.Debug("Loaded environment variables", slog.String("path", p))
	}
	return nil
}

// DecodeEnvironment reads Environment from the process environment.
func DecodeEnvironment() (Environment, error) {
	var env Environment
	err := envdecode.Decode(&env)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Environment{}, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid environment").
			Fatal().
			Build()
	}
	return env, nil
}

// Mode resolves the runtime mode from APP_ENV, then NODE_ENV, defaulting to
// development when neither is set. A set but unknown value is an error.
func (e Environment) Mode() (mode.Mode, error) {
	raw := e.AppEnv
	if raw == "" {
		raw = e.NodeEnv
	}
	if raw == "" {
		return mode.Default, nil
	}
	m, err := mode.Parse(raw)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, fmt.Sprintf("unknown mode %q", raw)).
			Fatal().
			WithContext("mode", raw).
			Build()
	}
	return m, nil
}

func (e Environment) apply(cfg *Config) {
	if e.Port != 0 {
		cfg.Server.Port = e.Port
	}
	if e.Product != "" {
		cfg.Bundle.Product = e.Product
	}
}
