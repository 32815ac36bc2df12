package hot

import (
	"net/url"
	"strconv"
	"strings"
)

// ClientModule is the module specifier that resolves to the browser client.
// Query parameters configure it, e.g. "appserve-hot-client?reload=true".
const ClientModule = "appserve-hot-client"

// ClientOptions are read from the module specifier query.
type ClientOptions struct {
	Reload bool
	Quiet  bool
}

// ParseClientModule reports whether spec names the client module and returns
// its options.
func ParseClientModule(spec string) (ClientOptions, bool) {
	name, query, _ := strings.Cut(spec, "?")
	if name != ClientModule {
		return ClientOptions{}, false
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return ClientOptions{}, true
	}
	return ClientOptions{
		Reload: q.Get("reload") == "true",
		Quiet:  q.Get("noInfo") == "true",
	}, true
}

// ClientScript returns the browser client. It listens on StreamPath, logs
// build errors and reloads the page after a successful build when reload is
// set.
func ClientScript(reload bool) string {
	return strings.NewReplacer(
		"__STREAM__", strconv.Quote(StreamPath),
		"__RELOAD__", strconv.FormatBool(reload),
	).Replace(clientTemplate)
}

const clientTemplate = `(function () {
  if (typeof window === "undefined" || window.__APPSERVE_HOT__) return;
  window.__APPSERVE_HOT__ = true;
  var reload = __RELOAD__;
  var current = null;
  function connect() {
    var es = new EventSource(__STREAM__);
    es.onmessage = function (e) {
      var ev;
      try { ev = JSON.parse(e.data); } catch (_) { return; }
      if (ev.action === "building") { console.log("[appserve] rebuilding"); return; }
      if (ev.action !== "built") return;
      if (ev.errors && ev.errors.length) {
        ev.errors.forEach(function (m) { console.error("[appserve] " + m); });
        return;
      }
      if (current === null) { current = ev.hash; return; }
      if (ev.hash !== current) {
        current = ev.hash;
        if (reload) { location.reload(); } else { console.log("[appserve] bundle updated"); }
      }
    };
    es.onerror = function () { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`
