package middleware

import (
	"net/http"
	"strings"
)

// CORSConfig configures the CORS middleware.
//
// Spec reference: https://fetch.spec.whatwg.org/#http-cors-protocol
type CORSConfig struct {
	// AllowedOrigins is the origin allow-list. When empty, any origin is
	// allowed and Access-Control-Allow-Origin is "*". Matching is
	// case-insensitive on the exact origin string.
	AllowedOrigins []string

	// AllowedMethods is the advertised method list. When empty,
	// DefaultAllowedMethods is used.
	AllowedMethods []string
}

// DefaultAllowedMethods is advertised when no methods are configured.
var DefaultAllowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodOptions,
}

// CORSMiddleware returns a middleware that sets Access-Control-Allow-*
// headers on every response and short-circuits OPTIONS preflight requests
// with 204 No Content before they reach the dispatcher.
func CORSMiddleware(cfg CORSConfig) Middleware {
	origins := make([]string, len(cfg.AllowedOrigins))
	for i, o := range cfg.AllowedOrigins {
		origins[i] = strings.ToLower(o)
	}

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = DefaultAllowedMethods
	}
	allowMethods := strings.Join(methods, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			if len(origins) == 0 {
				h.Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); origin != "" && originAllowed(origin, origins) {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}

			h.Set("Access-Control-Allow-Methods", allowMethods)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed reports whether origin is in the allow-list.
func originAllowed(origin string, allowed []string) bool {
	origin = strings.ToLower(origin)

	for _, o := range allowed {
		if o == origin {
			return true
		}
	}

	return false
}
