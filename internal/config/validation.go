package config

import (
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/appserve/internal/foundation/errors"
)

// ValidateConfig checks a defaulted configuration.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	for _, check := range []func() error{
		cv.validateServer,
		cv.validateMiddlewares,
		cv.validateEntry,
		cv.validateLayouts,
		cv.validatePaths,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field, msg string) error {
	return ferrors.ConfigError(fmt.Sprintf("%s: %s", field, msg)).
		WithContext("field", field).
		Build()
}

func (cv *configurationValidator) validateServer() error {
	s := cv.config.Server
	if s.Port < 1 || s.Port > 65535 {
		return invalid("server.port", fmt.Sprintf("must be between 1 and 65535, got %d", s.Port))
	}
	if s.StartupTimeout < 0 {
		return invalid("server.startup_timeout", "must not be negative")
	}
	if s.ShutdownTimeout < 0 {
		return invalid("server.shutdown_timeout", "must not be negative")
	}
	return nil
}

func (cv *configurationValidator) validateMiddlewares() error {
	for i, m := range cv.config.Server.Middlewares {
		if strings.TrimSpace(m.Name) == "" {
			return invalid(fmt.Sprintf("server.middlewares[%d]", i), "name is empty")
		}
	}
	return nil
}

func (cv *configurationValidator) validateEntry() error {
	if err := cv.config.Bundle.Entry.Validate(); err != nil {
		return invalid("bundle.entry", err.Error())
	}
	return nil
}

func (cv *configurationValidator) validateLayouts() error {
	for _, l := range cv.config.Bundle.Layouts {
		if strings.TrimSpace(l.Name) == "" {
			return invalid("bundle.layouts", "layout name is empty")
		}
		if strings.ContainsAny(l.Name, `/\`) {
			return invalid("bundle.layouts", fmt.Sprintf("layout name %q must not contain a path separator", l.Name))
		}
		if strings.TrimSpace(l.Template) == "" {
			return invalid("bundle.layouts", fmt.Sprintf("layout %q has no template", l.Name))
		}
	}
	return nil
}

func (cv *configurationValidator) validatePaths() error {
	b := cv.config.Bundle
	if !strings.HasPrefix(b.PublicPath, "/") {
		return invalid("bundle.public_path", fmt.Sprintf("must start with '/', got %q", b.PublicPath))
	}
	if strings.TrimSpace(b.StaticRoot) == "" {
		return invalid("bundle.static_root", "is empty")
	}
	if port := b.Dashboard(); port < 0 || port > 65535 {
		return invalid("bundle.dashboard_port", fmt.Sprintf("must be between 0 and 65535, got %d", port))
	}
	if b.Debounce < 0 {
		return invalid("bundle.debounce", "must not be negative")
	}
	return nil
}
