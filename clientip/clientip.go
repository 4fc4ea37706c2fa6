// Package clientip resolves the client address used for rate-limit
// bucketing and {client_ip} header substitution.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Fallback is the address used when no client IP can be resolved. It exists
// so unidentified clients share a single rate-limit bucket instead of
// bypassing the limiter; it is never used as a forwarding address.
const Fallback = "0.0.0.0"

// FromRequest resolves the client IP for a request. Resolution order:
//  1. the first valid IP in the X-Forwarded-For header,
//  2. the transport peer address (r.RemoteAddr),
//  3. Fallback.
func FromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := firstForwardedIP(xff); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may already be a bare IP without port.
		host = r.RemoteAddr
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}

	return Fallback
}

// firstForwardedIP returns the leftmost valid IP from a comma-separated
// X-Forwarded-For value, or an empty string.
func firstForwardedIP(xff string) string {
	for _, part := range strings.Split(xff, ",") {
		candidate := strings.TrimSpace(part)
		if ip := net.ParseIP(candidate); ip != nil {
			return candidate
		}
	}

	return ""
}
