package middleware

import "net/http"

// SecurityHeadersConfig configures the security headers middleware.
type SecurityHeadersConfig struct {
	// Headers is copied verbatim onto every response.
	Headers map[string]string
}

// SecurityHeadersMiddleware returns a middleware that sets the configured
// header set on every response, including error and rate-limited responses.
func SecurityHeadersMiddleware(cfg SecurityHeadersConfig) Middleware {
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range headers {
				h.Set(name, value)
			}

			next.ServeHTTP(w, r)
		})
	}
}
