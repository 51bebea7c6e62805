package security

import (
	"net/http"
	"strings"
)

// CORS reflects the Origin header back when it contains one of the allowed fragments,
// so "vercel.app" admits every preview deployment. "*" admits any origin.
type CORS struct {
	allowed []string
	methods string
	headers string
	expose  string
}

func NewCORS(allowed []string) *CORS {
	return &CORS{
		allowed: allowed,
		methods: "GET, POST, OPTIONS",
		headers: "Content-Type, Idempotency-Key, X-Request-ID",
		expose:  "Idempotent-Replayed, X-Request-ID",
	}
}

// Allowed reports whether origin may read responses.
func (c *CORS) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range c.allowed {
		if a == "*" || strings.Contains(origin, a) {
			return true
		}
	}
	return false
}

// Middleware sets the CORS headers and answers preflight requests with 204.
func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Add("Vary", "Origin")
		if origin := r.Header.Get("Origin"); c.Allowed(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", c.expose)
		}
		h.Set("Access-Control-Allow-Methods", c.methods)
		h.Set("Access-Control-Allow-Headers", c.headers)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
