// Package middleware provides the policy chain applied around the
// dispatcher: rate limiting, compression negotiation, CORS, security
// headers, asset cache-control, plus ambient request-ID, recovery, and
// metrics layers.
package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h so that the first listed middleware is the
// outermost layer.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}

	return h
}
