package bundle

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/hot"
	"git.home.luguber.info/inful/appserve/internal/mode"
)

// DefaultHotClient is the module prepended to development entries.
const DefaultHotClient = hot.ClientModule + "?noInfo=true&reload=true"

// DevDevtool is the source map style used in development.
const DevDevtool = "cheap-module-eval-source-map"

// Settings are the declared inputs the Composer builds from.
type Settings struct {
	Entry         Entry
	Layouts       Layouts
	StaticRoot    string
	PublicPath    string
	Product       string
	AssetsRoot    string
	HotClient     string
	DashboardPort int
}

// Composer builds BuildConfig values. It performs no I/O.
type Composer struct {
	settings Settings
}

// NewComposer returns a composer over s.
func NewComposer(s Settings) *Composer {
	if s.HotClient == "" {
		s.HotClient = DefaultHotClient
	}
	s.Entry = s.Entry.Clone()
	s.Layouts = append(Layouts(nil), s.Layouts...)
	return &Composer{settings: s}
}

// Settings returns a copy of the composer inputs.
func (c *Composer) Settings() Settings {
	s := c.settings
	s.Entry = s.Entry.Clone()
	s.Layouts = append(Layouts(nil), s.Layouts...)
	return s
}

// Base builds the configuration shared by every mode. m is frozen into the
// Define plugin as process.env.NODE_ENV.
func (c *Composer) Base(m mode.Mode) *BuildConfig {
	s := c.settings
	aliases := map[string]string{
		"vue$": "vue/dist/vue.esm.js",
	}
	if s.Product != "" {
		aliases["@"] = filepath.Join(s.AssetsRoot, s.Product)
	}
	assetPublicPath := s.PublicPath
	if m == mode.Production {
		assetPublicPath = strings.TrimRight(s.PublicPath, "/") + "/"
	}
	return &BuildConfig{
		Entry:      s.Entry.Clone(),
		OutputPath: s.StaticRoot,
		PublicPath: s.PublicPath,
		Rules:      baseRules(assetPublicPath),
		Plugins: []Plugin{
			DefinePlugin{Values: map[string]string{
				"process.env.NODE_ENV": jsonString(string(m)),
			}},
		},
		Resolve: Resolve{
			Extensions: []string{".js", ".ts", ".vue", ".json"},
			Aliases:    aliases,
		},
	}
}

// Compose returns the configuration for m. Test mode uses the development
// variant. Any other value is a configuration error.
func (c *Composer) Compose(m mode.Mode) (*BuildConfig, error) {
	switch m {
	case mode.Development, mode.Test:
		return c.development(m), nil
	case mode.Production:
		return c.production(), nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown mode %q", string(m))).
			WithContext("mode", string(m)).
			Build()
	}
}

func (c *Composer) development(m mode.Mode) *BuildConfig {
	cfg := Merge(c.Base(m), &BuildConfig{
		Devtool: DevDevtool,
		Plugins: []Plugin{
			HotReplacementPlugin{},
			DashboardPlugin{Port: c.settings.DashboardPort},
		},
	})
	cfg.Entry = InjectHotClient(cfg.Entry, c.settings.HotClient)
	return cfg
}

func (c *Composer) production() *BuildConfig {
	overlay := &BuildConfig{}
	for _, l := range c.settings.Layouts {
		overlay.Plugins = append(overlay.Plugins, HTMLShellPlugin{
			Layout:   l.Name,
			Template: l.Template,
			Filename: l.Filename(),
			Minify:   true,
		})
	}
	overlay.Plugins = append(overlay.Plugins,
		MinifyPlugin{Target: "es2017", SourceMap: true},
		ExtractStylePlugin{Filename: "[name].css"},
	)
	return Merge(c.Base(mode.Production), overlay)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
