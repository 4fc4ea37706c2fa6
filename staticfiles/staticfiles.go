// Package staticfiles serves files from a document root with traversal-safe
// path resolution, index files, and optional auto-generated directory
// listings.
package staticfiles

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoRoot is returned when Config.Root is empty.
var ErrNoRoot = errors.New("static files: root directory must not be empty")

// ErrPathTraversal is returned by NormalizePath when a path would escape the
// root after resolving "." and ".." segments.
var ErrPathTraversal = errors.New("static files: path escapes root")

// Config configures the static file handler.
type Config struct {
	// Root is the document root directory. Required.
	Root string

	// Index is the file served for directory requests.
	// Defaults to "index.html" when empty.
	Index string

	// AutoIndex enables HTML directory listings for directories without an
	// index file. Disabled by default.
	AutoIndex bool
}

// Handler serves files below a root directory. It resolves request paths
// arithmetically before touching the filesystem, so traversal attempts are
// rejected without any filesystem access.
type Handler struct {
	root      string
	index     string
	autoIndex bool
}

// NewHandler returns a Handler for the configured root.
// It returns ErrNoRoot if Config.Root is empty.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Root == "" {
		return nil, ErrNoRoot
	}

	index := cfg.Index
	if index == "" {
		index = "index.html"
	}

	return &Handler{
		root:      cfg.Root,
		index:     index,
		autoIndex: cfg.AutoIndex,
	}, nil
}

// ServeHTTP serves the request path relative to the root.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeRel(w, r, r.URL.Path)
}

// ServeRel serves rel, a request path relative to the root. Only GET and
// HEAD are allowed; other methods receive 405 with an Allow header.
func (h *Handler) ServeRel(w http.ResponseWriter, r *http.Request, rel string) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	default:
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	clean, err := NormalizePath(rel)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	fsPath := filepath.Join(h.root, filepath.FromSlash(clean))

	info, err := os.Stat(fsPath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		h.internalError(w, "stat failed", fsPath, err)
		return
	}

	if info.Mode().IsRegular() {
		h.serveFile(w, r, fsPath, info.Size())
		return
	}

	if !info.IsDir() {
		// Sockets, devices and the like are not served.
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	indexPath := filepath.Join(fsPath, h.index)
	if indexInfo, err := os.Stat(indexPath); err == nil && indexInfo.Mode().IsRegular() {
		h.serveFile(w, r, indexPath, indexInfo.Size())
		return
	}

	if h.autoIndex {
		h.serveListing(w, r, fsPath, clean)
		return
	}

	http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
}

// NormalizePath resolves "." and ".." segments of a slash-separated request
// path arithmetically, without filesystem calls. It returns ErrPathTraversal
// when the resolved path would leave the root.
func NormalizePath(rel string) (string, error) {
	rel = strings.TrimPrefix(rel, "/")

	var segments []string
	for _, part := range strings.Split(rel, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(segments) == 0 {
				return "", ErrPathTraversal
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, part)
		}
	}

	return strings.Join(segments, "/"), nil
}

// serveFile writes the file with its mapped Content-Type and an exact
// Content-Length. HEAD requests receive headers only.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, fsPath string, size int64) {
	f, err := os.Open(fsPath)
	if err != nil {
		h.internalError(w, "open failed", fsPath, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", TypeByExtension(fsPath))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := io.Copy(w, f); err != nil {
		// Headers are already sent; nothing to do but record it.
		slog.Error("write failed while serving file", "path", fsPath, "error", err)
	}
}

// serveListing renders an HTML directory listing.
func (h *Handler) serveListing(w http.ResponseWriter, r *http.Request, fsPath, rel string) {
	entries, err := os.ReadDir(fsPath)
	if err != nil {
		h.internalError(w, "read dir failed", fsPath, err)
		return
	}

	html := renderListing(entries, rel)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(html)))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	io.WriteString(w, html)
}

// internalError responds with a bare 500. The underlying cause is logged and
// never leaks into the response body.
func (h *Handler) internalError(w http.ResponseWriter, msg, fsPath string, err error) {
	slog.Error(msg, "path", fsPath, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// parentHref returns the link target of the ".." entry for a non-root
// listing path.
func parentHref(rel string) string {
	parent := path.Dir(rel)
	if parent == "." || parent == "/" {
		return "/"
	}

	return "/" + parent
}
