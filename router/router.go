// Package router matches request paths against an ordered route table and
// dispatches to the static file server or a proxy forwarder.
//
// Patterns are either exact paths ("/health") or prefix wildcards
// ("/api/*"). Entries are evaluated in configured order and the first
// structural match wins; this is deliberately not longest-prefix routing,
// so entry order in the configuration is significant.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/p-arndt/statiker/config"
	"github.com/p-arndt/statiker/proxy"
	"github.com/p-arndt/statiker/staticfiles"
)

// ErrEmptyPattern is returned when a routing entry has an empty path.
var ErrEmptyPattern = errors.New("router: route path must not be empty")

// Kind says how a matched route is served.
type Kind int

const (
	// KindStatic serves files from the document root.
	KindStatic Kind = iota

	// KindProxy forwards to an upstream backend.
	KindProxy
)

// Entry is a single immutable route. Exactly one of Static or Proxy is set,
// matching Kind.
type Entry struct {
	Pattern string
	Kind    Kind
	Static  *staticfiles.Handler
	Proxy   *proxy.Forwarder

	// prefix is non-empty for wildcard patterns: "/api/*" stores "/api/".
	prefix string
}

// match reports whether path matches the entry. For static wildcard entries
// rest is the remainder of the path below the pattern prefix.
func (e *Entry) match(path string) (rest string, ok bool) {
	if e.prefix == "" {
		if path == e.Pattern {
			return "", true
		}

		return "", false
	}

	if strings.HasPrefix(path, e.prefix) {
		return path[len(e.prefix):], true
	}

	// "/api/*" also matches the bare "/api".
	if path == strings.TrimSuffix(e.prefix, "/") {
		return "", true
	}

	return "", false
}

// Table is the immutable, ordered route table plus the SPA fallback. It is
// built once at startup and safe for concurrent use; it holds no mutable
// state.
type Table struct {
	entries []Entry

	// spa serves the fallback file for unmatched paths when SPA routing is
	// enabled; nil otherwise.
	spa         *staticfiles.Handler
	spaFallback string
}

// Build constructs the route table from configuration. When no routes are
// configured it defaults to serving static files at "/". Routes declaring
// both static serving and a proxy keep the static handler; the proxy target
// is ignored with a warning.
func Build(cfg config.Config) (*Table, error) {
	static, err := staticfiles.NewHandler(staticfiles.Config{
		Root:      cfg.Server.Root,
		Index:     cfg.Server.Index,
		AutoIndex: cfg.Server.AutoIndex,
	})
	if err != nil {
		return nil, err
	}

	t := &Table{}

	for _, route := range cfg.Routing {
		if route.Path == "" {
			return nil, ErrEmptyPattern
		}

		switch {
		case route.Serve == "static":
			if route.Proxy != nil {
				slog.Warn("route declares both static serving and a proxy target; proxy is ignored",
					"path", route.Path,
				)
			}

			t.entries = append(t.entries, newEntry(route.Path, KindStatic, static, nil))
			slog.Info("mounting static route", "path", route.Path)

		case route.Proxy != nil:
			target, err := proxy.NewTarget(*route.Proxy)
			if err != nil {
				return nil, fmt.Errorf("route %q: %w", route.Path, err)
			}

			fwd := proxy.NewForwarder(target, nil)
			t.entries = append(t.entries, newEntry(route.Path, KindProxy, nil, fwd))
			slog.Info("mounting proxy route", "path", route.Path, "backend", target.URL)
		}
	}

	if len(t.entries) == 0 {
		slog.Info("no routes configured, defaulting to serve static files at /")
		t.entries = append(t.entries, newEntry("/*", KindStatic, static, nil))
	}

	if cfg.SPA.Enabled {
		fallback := strings.TrimPrefix(cfg.SPA.Fallback, "/")

		clean, err := staticfiles.NormalizePath(fallback)
		if err != nil {
			slog.Warn("spa fallback path escapes root, using default index.html",
				"fallback", cfg.SPA.Fallback,
			)
			clean = "index.html"
		}

		t.spa = static
		t.spaFallback = clean
	}

	return t, nil
}

// newEntry builds an Entry, splitting wildcard patterns into their literal
// prefix.
func newEntry(pattern string, kind Kind, static *staticfiles.Handler, fwd *proxy.Forwarder) Entry {
	e := Entry{
		Pattern: pattern,
		Kind:    kind,
		Static:  static,
		Proxy:   fwd,
	}

	if strings.HasSuffix(pattern, "/*") {
		e.prefix = pattern[:len(pattern)-1]
	}

	return e
}

// ServeHTTP dispatches to the first matching entry. Unmatched paths go to
// the SPA fallback when enabled, otherwise 404.
func (t *Table) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for i := range t.entries {
		entry := &t.entries[i]

		rest, ok := entry.match(r.URL.Path)
		if !ok {
			continue
		}

		switch entry.Kind {
		case KindStatic:
			entry.Static.ServeRel(w, r, rest)
		case KindProxy:
			// The full original path is appended to the backend URL.
			entry.Proxy.ServeHTTP(w, r)
		}

		return
	}

	if t.spa != nil {
		t.spa.ServeRel(w, r, t.spaFallback)
		return
	}

	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}
