package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
)

func writeRoute(t *testing.T, root, feature, name, body string) string {
	t.Helper()
	dir := filepath.Join(root, feature)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func route(method, url, name string) string {
	return "method = \"" + method + "\"\nurl = \"" + url + "\"\nroute = \"" + name + "\"\n"
}

func named(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("h1", named("h1")))
	require.NoError(t, reg.Register("h2", named("h2")))
	return reg
}

type routeKey struct{ method, url, route string }

func keys(ds []Descriptor) []routeKey {
	out := make([]routeKey, 0, len(ds))
	for _, d := range ds {
		out = append(out, routeKey{d.Method, d.URL, d.Route})
	}
	return out
}

func TestDiscoverReturnsEveryFeature(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, root, "users", "get-users.route.hcl", route("get", "/users", "h1"))
	writeRoute(t, root, "orders", "post-orders.route.hcl", route("POST", "/orders", "h2"))

	found, err := Discover(context.Background(), root, testRegistry(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []routeKey{
		{http.MethodGet, "/users", "h1"},
		{http.MethodPost, "/orders", "h2"},
	}, keys(found))

	for _, d := range found {
		rec := httptest.NewRecorder()
		d.Handler.ServeHTTP(rec, httptest.NewRequest(d.Method, d.URL, nil))
		assert.Equal(t, d.Route, rec.Body.String())
	}
}

func TestDiscoverIsOrderedByFeatureThenFile(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, root, "zeta", "a.route.hcl", route("get", "/z", "h1"))
	writeRoute(t, root, "alpha", "b.route.hcl", route("get", "/b", "h1"))
	writeRoute(t, root, "alpha", "a.route.hcl", route("get", "/a", "h2"))

	found, err := Discover(context.Background(), root, testRegistry(t))
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, []string{"/a", "/b", "/z"}, []string{found[0].URL, found[1].URL, found[2].URL})
	assert.Equal(t, "alpha", found[0].Feature)
}

func TestDiscoverIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, root, "users", "get-users.route.hcl", route("get", "/users", "h1"))
	writeRoute(t, root, "users", "README.md", "not a route")
	writeRoute(t, root, "users", "helpers.hcl", "garbage {")
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.route.hcl"), []byte("ignored"), 0o600))

	found, err := Discover(context.Background(), root, testRegistry(t))
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestDiscoverEmptyFeatureDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o750))
	found, err := Discover(context.Background(), root, testRegistry(t))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDiscoverMalformedFiles(t *testing.T) {
	cases := map[string]string{
		"syntax":        "method = \"get\"\nurl = ",
		"missing route": "method = \"get\"\nurl = \"/users\"\n",
		"extra":         route("get", "/users", "h1") + "auth = true\n",
		"bad method":    route("fetch", "/users", "h1"),
		"relative url":  route("get", "users", "h1"),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			writeRoute(t, root, "users", "r.route.hcl", body)
			_, err := Discover(context.Background(), root, testRegistry(t))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig), err.Error())
			assert.Contains(t, err.Error(), "malformed route file")
		})
	}
}

func TestDiscoverUnknownHandler(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, root, "users", "r.route.hcl", route("get", "/users", "users.nope"))
	_, err := Discover(context.Background(), root, testRegistry(t))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	assert.Contains(t, err.Error(), "unregistered handler")
}

func TestDiscoverDuplicateRouteIsFatal(t *testing.T) {
	root := t.TempDir()
	writeRoute(t, root, "a", "one.route.hcl", route("get", "/users/:id", "h1"))
	writeRoute(t, root, "b", "two.route.hcl", route("GET", "/users/:id", "h2"))
	_, err := Discover(context.Background(), root, testRegistry(t))
	require.Error(t, err)
	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryConfig, classified.Category())
	assert.True(t, classified.IsFatal())
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "missing"), testRegistry(t))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryDiscovery))
}

func TestDescriptorPattern(t *testing.T) {
	d := Descriptor{Method: http.MethodGet, URL: "/users/:id/orders/:order_id"}
	assert.Equal(t, "/users/{id}/orders/{order_id}", d.Pattern())
	assert.Equal(t, "GET /users/{id}/orders/{order_id}", d.Key())
}

func TestRegistryProvideAndDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Provide(SystemProvider{}))
	assert.Equal(t, []string{SystemBuildStatus, SystemHealth}, reg.Names())

	err := reg.Provide(SystemProvider{})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestSystemHandlers(t *testing.T) {
	handlers := SystemProvider{Status: func() any { return map[string]string{"state": "serving"} }}.Handlers()

	rec := httptest.NewRecorder()
	handlers[SystemHealth].ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handlers[SystemBuildStatus].ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "serving", body["state"])
}
