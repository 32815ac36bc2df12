package routes

import (
	"encoding/json"
	"net/http"
)

// Handler names served by SystemProvider.
const (
	SystemHealth      = "system.health"
	SystemBuildStatus = "system.build_status"
)

// SystemProvider exposes the health probe and the build status snapshot.
type SystemProvider struct {
	// Status returns a JSON-encodable snapshot. Nil reports an empty object.
	Status func() any
}

func (p SystemProvider) Handlers() map[string]http.Handler {
	return map[string]http.Handler{
		SystemHealth: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]string{"status": "ok"})
		}),
		SystemBuildStatus: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			var snapshot any = struct{}{}
			if p.Status != nil {
				snapshot = p.Status()
			}
			writeJSON(w, snapshot)
		}),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
