package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/foundation/normalization"
	"git.home.luguber.info/inful/appserve/internal/logfields"
)

// FileSuffix marks route declaration files.
const FileSuffix = ".route.hcl"

// Descriptor is one discovered route bound to its handler.
type Descriptor struct {
	Feature string
	Method  string
	URL     string
	Route   string
	Handler http.Handler `json:"-"`
	Source  string
}

// Key identifies a route for duplicate detection.
func (d Descriptor) Key() string {
	return d.Method + " " + d.Pattern()
}

var paramSegment = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// Pattern returns URL with ":name" segments rewritten to "{name}".
func (d Descriptor) Pattern() string {
	return paramSegment.ReplaceAllString(d.URL, "{$1}")
}

var methodNormalizer = normalization.NewNormalizer(map[string]string{
	"get":     http.MethodGet,
	"head":    http.MethodHead,
	"post":    http.MethodPost,
	"put":     http.MethodPut,
	"patch":   http.MethodPatch,
	"delete":  http.MethodDelete,
	"options": http.MethodOptions,
}, "")

// routeFile is the exact shape of a route declaration. gohcl rejects
// missing and unexpected attributes.
type routeFile struct {
	Method string `hcl:"method"`
	URL    string `hcl:"url"`
	Route  string `hcl:"route"`
}

// Discover scans root for feature directories and returns every declared
// route bound to its handler from handlers. Features are scanned
// concurrently; the result is ordered by feature then file name. Two
// declarations of the same method and URL are a configuration error.
func Discover(ctx context.Context, root string, handlers *Registry) ([]Descriptor, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.DiscoveryError("cannot read routes directory").
			WithCause(err).
			WithContext("dir", root).
			Fatal().
			Build()
	}

	var features []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			features = append(features, e.Name())
		}
	}
	sort.Strings(features)

	results := make([][]Descriptor, len(features))
	g, gctx := errgroup.WithContext(ctx)
	for i, feature := range features {
		g.Go(func() error {
			found, err := discoverFeature(gctx, root, feature, handlers)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Descriptor
	seen := make(map[string]string)
	for _, found := range results {
		for _, d := range found {
			if prev, dup := seen[d.Key()]; dup {
				return nil, errors.ConfigError("duplicate route").
					WithContext("method", d.Method).
					WithContext("url", d.URL).
					WithContext("first", prev).
					WithContext("second", d.Source).
					Fatal().
					Build()
			}
			seen[d.Key()] = d.Source
			out = append(out, d)
		}
	}
	slog.Debug("Routes discovered", slog.Int("count", len(out)), slog.Int("features", len(features)))
	return out, nil
}

func discoverFeature(ctx context.Context, root, feature string, handlers *Registry) ([]Descriptor, error) {
	dir := filepath.Join(root, feature)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.DiscoveryError("cannot read feature directory").
			WithCause(err).
			WithContext("dir", dir).
			Fatal().
			Build()
	}

	// hclparse.Parser caches files in a map; one per goroutine.
	parser := hclparse.NewParser()
	var out []Descriptor
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := loadRoute(parser, filepath.Join(dir, e.Name()), handlers)
		if err != nil {
			return nil, err
		}
		d.Feature = feature
		slog.Debug("Route declared",
			logfields.Feature(feature),
			logfields.Method(d.Method),
			logfields.URL(d.URL),
			logfields.Route(d.Route))
		out = append(out, d)
	}
	return out, nil
}

func loadRoute(parser *hclparse.Parser, path string, handlers *Registry) (Descriptor, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, errors.DiscoveryError("cannot read route file").
			WithCause(err).
			WithContext("file", path).
			Fatal().
			Build()
	}
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return Descriptor{}, malformed(path, diags)
	}
	var rf routeFile
	if diags := gohcl.DecodeBody(file.Body, nil, &rf); diags.HasErrors() {
		return Descriptor{}, malformed(path, diags)
	}

	method, err := methodNormalizer.NormalizeWithError(rf.Method)
	if err != nil {
		return Descriptor{}, malformed(path, err)
	}
	if !strings.HasPrefix(rf.URL, "/") {
		return Descriptor{}, malformed(path, fmt.Errorf("url %q must start with /", rf.URL))
	}
	h, ok := handlers.Lookup(rf.Route)
	if !ok {
		return Descriptor{}, errors.ConfigError("route names an unregistered handler").
			WithContext("file", path).
			WithContext("route", rf.Route).
			Fatal().
			Build()
	}
	return Descriptor{Method: method, URL: rf.URL, Route: rf.Route, Handler: h, Source: path}, nil
}

func malformed(path string, cause error) error {
	return errors.WrapError(cause, errors.CategoryConfig, "malformed route file").
		WithContext("file", path).
		Fatal().
		Build()
}
