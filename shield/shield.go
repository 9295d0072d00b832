// Package shield provides the HTTP middleware stack for the savoir API
// service: security headers, request body limits, and request IDs.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack() {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"

	"github.com/hazyhaar/savoir/idgen"
	"github.com/hazyhaar/savoir/kit"
)

// MaxJSONBody is the default request body cap for JSON endpoints (1 MiB).
// Multipart uploads set their own limit per route.
const MaxJSONBody int64 = 1 << 20

// DefaultStack returns the standard middleware ordering:
// RequestID → SecurityHeaders → MaxBody.
func DefaultStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		RequestID,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(MaxJSONBody),
	}
}

// RequestID assigns a correlation ID to every request and echoes it in the
// X-Request-Id response header. An incoming X-Request-Id is preserved.
func RequestID(next http.Handler) http.Handler {
	gen := idgen.Prefixed("req_", idgen.Default)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = gen()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(kit.WithRequestID(r.Context(), id)))
	})
}

// MaxBody returns middleware that caps the request body size for JSON
// content types. Multipart uploads pass through untouched.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") == "application/json" {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
