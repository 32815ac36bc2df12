package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORS answers cross-origin requests for the configured origins. "*"
// allows every origin.
type CORS struct {
	allowedOrigins map[string]struct{}
	allowAll       bool
	methods        string
	headers        string
	maxAge         int
}

// NewCORS builds a CORS middleware. Empty methods or headers fall back to
// the common defaults.
func NewCORS(origins, methods, headers []string, maxAge int) *CORS {
	c := &CORS{allowedOrigins: make(map[string]struct{}), maxAge: maxAge}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			c.allowAll = true
			continue
		}
		if o != "" {
			c.allowedOrigins[o] = struct{}{}
		}
	}
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization", DefaultRequestIDHeader}
	}
	c.methods = strings.Join(methods, ", ")
	c.headers = strings.Join(headers, ", ")
	return c
}

func (c *CORS) allowed(origin string) bool {
	if c.allowAll {
		return true
	}
	_, ok := c.allowedOrigins[origin]
	return ok
}

// Handler wraps next.
func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && c.allowed(origin) {
			h := w.Header()
			if c.allowAll {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", c.methods)
			h.Set("Access-Control-Allow-Headers", c.headers)
			if c.maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(c.maxAge))
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
