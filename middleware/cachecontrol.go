package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidMaxAge is returned when CacheControlConfig.MaxAge is negative.
var ErrInvalidMaxAge = errors.New("cache control: max age must not be negative")

// assetExtensions classifies request paths as cacheable static assets:
// stylesheets, scripts, images, fonts, and media.
var assetExtensions = map[string]struct{}{
	"css":   {},
	"js":    {},
	"mjs":   {},
	"map":   {},
	"png":   {},
	"jpg":   {},
	"jpeg":  {},
	"gif":   {},
	"webp":  {},
	"svg":   {},
	"ico":   {},
	"ttf":   {},
	"otf":   {},
	"woff":  {},
	"woff2": {},
	"mp4":   {},
	"webm":  {},
	"mp3":   {},
}

// IsAssetPath reports whether the path's extension is in the asset set.
func IsAssetPath(p string) bool {
	idx := strings.LastIndexByte(p, '.')
	if idx < 0 {
		return false
	}

	_, ok := assetExtensions[p[idx+1:]]
	return ok
}

// CacheControlConfig configures the asset cache-control middleware.
type CacheControlConfig struct {
	// MaxAge is the cache lifetime written into the header. Must not be
	// negative.
	MaxAge time.Duration
}

// CacheControlMiddleware returns a middleware that sets
// "Cache-Control: public, max-age=<seconds>, immutable" on responses for
// asset paths.
//
// It returns ErrInvalidMaxAge if MaxAge is negative.
func CacheControlMiddleware(cfg CacheControlConfig) (Middleware, error) {
	if cfg.MaxAge < 0 {
		return nil, ErrInvalidMaxAge
	}

	value := fmt.Sprintf("public, max-age=%d, immutable", int64(cfg.MaxAge.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsAssetPath(r.URL.Path) {
				w.Header().Set("Cache-Control", value)
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
