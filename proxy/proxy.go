// Package proxy forwards requests to an upstream backend. Each client
// request results in exactly one timeout-bounded upstream attempt; retry
// policy is out of scope.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/p-arndt/statiker/clientip"
	"github.com/p-arndt/statiker/config"
)

// ErrInvalidBackendURL is returned when a proxy target URL cannot be parsed
// or lacks a scheme or host.
var ErrInvalidBackendURL = errors.New("proxy: invalid backend url")

// DefaultTimeout bounds upstream attempts when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// ClientIPToken is the placeholder replaced with the resolved client IP in
// configured header values.
const ClientIPToken = "{client_ip}"

// hopByHopHeaders are connection-scoped headers stripped from both the
// outbound request and the upstream response, per RFC 9110 Section 7.6.1.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Upgrade",
	"Te",
	"Trailer",
	"Trailers",
}

// Target is an immutable upstream destination built from configuration.
type Target struct {
	// URL is the backend base URL without a trailing slash.
	URL string

	// Timeout bounds the complete upstream exchange.
	Timeout time.Duration

	// AddHeaders are set on the outbound request after copying the client
	// headers. Values may contain ClientIPToken.
	AddHeaders map[string]string
}

// NewTarget validates and normalizes a configured proxy target.
// It returns ErrInvalidBackendURL for unusable URLs.
func NewTarget(cfg config.Proxy) (*Target, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBackendURL, cfg.URL)
	}

	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := make(map[string]string, len(cfg.AddHeaders))
	for k, v := range cfg.AddHeaders {
		headers[k] = v
	}

	return &Target{
		URL:        strings.TrimSuffix(cfg.URL, "/"),
		Timeout:    timeout,
		AddHeaders: headers,
	}, nil
}

// Forwarder is an http.Handler that forwards requests to a single Target.
type Forwarder struct {
	target *Target
	client *http.Client
}

// NewForwarder returns a Forwarder for the target. A nil client uses a
// shared default client; timeouts come from the target, not the client.
func NewForwarder(target *Target, client *http.Client) *Forwarder {
	if client == nil {
		client = defaultClient
	}

	return &Forwarder{
		target: target,
		client: client,
	}
}

// defaultClient is shared across forwarders. Deadlines are applied per
// request from the target timeout.
var defaultClient = &http.Client{
	// Redirects from the backend are passed through to the client verbatim.
	CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// ServeHTTP builds the outbound request, issues it once with the target
// deadline, and streams the upstream response back. Upstream failures and
// timeouts surface as 500 with the cause logged, never in the body.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upstream := f.target.URL + r.URL.Path
	if r.URL.RawQuery != "" {
		upstream += "?" + r.URL.RawQuery
	}

	ctx, cancel := context.WithTimeout(r.Context(), f.target.Timeout)
	defer cancel()

	out, err := http.NewRequestWithContext(ctx, r.Method, upstream, r.Body)
	if err != nil {
		slog.Error("building upstream request failed", "url", upstream, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	out.Header = r.Header.Clone()
	stripHopByHop(out.Header)

	ip := clientip.FromRequest(r)
	for name, value := range f.target.AddHeaders {
		out.Header.Set(name, strings.ReplaceAll(value, ClientIPToken, ip))
	}

	resp, err := f.client.Do(out)
	if err != nil {
		slog.Error("upstream request failed",
			"url", upstream,
			"timeout", f.target.Timeout,
			"error", err,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for name, values := range resp.Header {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	stripHopByHop(header)

	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// The status line is already on the wire; just record the failure.
		slog.Error("streaming upstream response failed", "url", upstream, "error", err)
	}
}

// stripHopByHop removes connection-scoped headers from h.
func stripHopByHop(h http.Header) {
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}
