package config

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/appserve/internal/bundle"
	"git.home.luguber.info/inful/appserve/internal/hot"
)

const (
	DefaultPort              = 3000
	DefaultRoutesDir         = "server/routes"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultStaticRoot        = "dist"
	DefaultPublicPath        = "/static"
	DefaultAssetsRoot        = "assets"
	DefaultDashboardPort     = 1337
	DefaultDebounce          = 300 * time.Millisecond
)

// DefaultApplier fills unset values of one config section.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type serverDefaults struct{}

func (serverDefaults) Domain() string { return "server" }

func (serverDefaults) ApplyDefaults(cfg *Config) error {
	s := &cfg.Server
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.RoutesDir == "" {
		s.RoutesDir = DefaultRoutesDir
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.ReadHeaderTimeout == 0 {
		s.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	return nil
}

type bundleDefaults struct{}

func (bundleDefaults) Domain() string { return "bundle" }

func (bundleDefaults) ApplyDefaults(cfg *Config) error {
	b := &cfg.Bundle
	if b.StaticRoot == "" {
		b.StaticRoot = DefaultStaticRoot
	}
	if b.PublicPath == "" {
		b.PublicPath = DefaultPublicPath
	}
	if len(b.PublicPath) > 1 {
		b.PublicPath = strings.TrimRight(b.PublicPath, "/")
	}
	if b.AssetsRoot == "" {
		b.AssetsRoot = DefaultAssetsRoot
	}
	if b.HotClient == "" {
		b.HotClient = bundle.DefaultHotClient
	}
	if b.HotHeartbeat == 0 {
		b.HotHeartbeat = hot.DefaultHeartbeat
	}
	if b.DashboardPort == nil {
		port := DefaultDashboardPort
		b.DashboardPort = &port
	}
	if b.Debounce == 0 {
		b.Debounce = DefaultDebounce
	}
	if len(b.Watch) == 0 {
		b.Watch = entryDirs(b.Entry)
	}
	return nil
}

// entryDirs returns the sorted unique directories holding entry modules.
func entryDirs(e bundle.Entry) []string {
	set := map[string]struct{}{}
	for _, m := range e.Modules() {
		set[filepath.Dir(m)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

var defaultAppliers = []DefaultApplier{serverDefaults{}, bundleDefaults{}, loggingDefaults{}}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
