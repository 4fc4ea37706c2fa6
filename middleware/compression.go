package middleware

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// ErrNoEncodingsEnabled is returned when CompressionConfig enables neither
// gzip nor brotli.
var ErrNoEncodingsEnabled = errors.New("compression: at least one of gzip or brotli must be enabled")

// CompressionConfig configures the compression middleware.
type CompressionConfig struct {
	// Gzip enables gzip encoding.
	Gzip bool

	// Brotli enables brotli encoding. Brotli is preferred over gzip when
	// the client accepts both.
	Brotli bool

	// MinLength is the minimum response body size in bytes before
	// compression is applied. When zero, all compressible responses are
	// compressed.
	MinLength int
}

// compressibleTypes are the textual content type prefixes eligible for
// compression. Binary and already-compressed formats pass through unchanged
// even when an encoding was negotiated.
var compressibleTypes = []string{
	"text/html",
	"text/css",
	"text/plain",
	"text/javascript",
	"application/javascript",
	"application/json",
	"image/svg",
}

// isCompressible reports whether the content type is eligible for
// compression. Media type parameters ("; charset=utf-8") are ignored.
func isCompressible(ct string) bool {
	ct, _, _ = strings.Cut(ct, ";")
	ct = strings.ToLower(strings.TrimSpace(ct))

	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}

	return false
}

// selectEncoding returns "br", "gzip", or "" from the request Accept-Encoding
// header and the enabled encodings. Brotli wins when both are accepted and
// enabled. A wildcard entry counts for both encodings.
func selectEncoding(r *http.Request, gzipEnabled, brotliEnabled bool) string {
	var acceptsGzip, acceptsBrotli bool

	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, q := parseEncoding(strings.TrimSpace(part))
		if q == 0 {
			continue
		}

		switch name {
		case "br":
			acceptsBrotli = true
		case "gzip":
			acceptsGzip = true
		case "*":
			acceptsBrotli = true
			acceptsGzip = true
		}
	}

	if brotliEnabled && acceptsBrotli {
		return "br"
	}

	if gzipEnabled && acceptsGzip {
		return "gzip"
	}

	return ""
}

// parseEncoding splits an Accept-Encoding token into its name and quality.
// A missing q parameter means full quality per RFC 9110 Section 12.4.2.
func parseEncoding(token string) (name string, q float64) {
	name, params, ok := strings.Cut(token, ";")
	name = strings.TrimSpace(name)
	if !ok {
		return name, 1
	}

	key, val, found := strings.Cut(strings.TrimSpace(params), "=")
	if !found || strings.TrimSpace(key) != "q" {
		return name, 1
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return name, 0
	}

	return name, parsed
}

var gzipPool = sync.Pool{
	New: func() any {
		return gzip.NewWriter(io.Discard)
	},
}

var brotliPool = sync.Pool{
	New: func() any {
		return brotli.NewWriterLevel(io.Discard, brotli.DefaultCompression)
	},
}

// CompressionMiddleware returns a middleware that compresses response bodies
// with gzip or brotli when negotiated. The pass-through decision is made when
// the response headers are written: non-compressible and already-encoded
// bodies (for example from a proxied upstream) stream to the client
// unbuffered, with Flush forwarded. Only bodies actually being compressed
// are buffered, so the Content-Length header is exact for the compressed
// form. HEAD requests run the same negotiation and advertise the encoding
// without a body.
//
// It returns ErrNoEncodingsEnabled when neither encoding is enabled.
func CompressionMiddleware(cfg CompressionConfig) (Middleware, error) {
	if !cfg.Gzip && !cfg.Brotli {
		return nil, ErrNoEncodingsEnabled
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := selectEncoding(r, cfg.Gzip, cfg.Brotli)
			if encoding == "" {
				next.ServeHTTP(w, r)
				return
			}

			cw := &compressedResponseWriter{
				ResponseWriter: w,
				encoding:       encoding,
				minLength:      cfg.MinLength,
				headOnly:       r.Method == http.MethodHead,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(cw, r)
			cw.close()
		})
	}, nil
}

// compressedResponseWriter makes the compression decision when the response
// headers are written, at which point Content-Type and Content-Encoding are
// final. Pass-through bodies go straight to the underlying writer; only
// bodies being compressed are buffered.
type compressedResponseWriter struct {
	http.ResponseWriter
	encoding  string
	minLength int
	headOnly  bool

	buf         bytes.Buffer
	statusCode  int
	passthrough bool
	wroteHeader bool
}

// WriteHeader picks streaming pass-through or buffered compression. For HEAD
// there is no body to measure, so the headers advertise the encoding the
// corresponding GET would use and the identity Content-Length is dropped.
func (cw *compressedResponseWriter) WriteHeader(statusCode int) {
	if cw.wroteHeader {
		return
	}

	cw.wroteHeader = true
	cw.statusCode = statusCode

	h := cw.Header()
	cw.passthrough = statusCode == http.StatusNoContent ||
		statusCode == http.StatusNotModified ||
		h.Get("Content-Encoding") != "" ||
		!isCompressible(h.Get("Content-Type")) ||
		declaredBelow(h, cw.minLength)

	if cw.passthrough {
		cw.ResponseWriter.WriteHeader(statusCode)
		return
	}

	if cw.headOnly {
		h.Set("Content-Encoding", cw.encoding)
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")
		cw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (cw *compressedResponseWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}

	if cw.passthrough {
		return cw.ResponseWriter.Write(b)
	}

	if cw.headOnly {
		return len(b), nil
	}

	return cw.buf.Write(b)
}

// Flush forwards to the underlying writer for streamed responses. A body
// buffered for compression cannot flush early; its length is not final
// until close.
func (cw *compressedResponseWriter) Flush() {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}

	if !cw.passthrough {
		return
	}

	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// close emits a buffered body: compressed when it meets the minimum length,
// identity with its exact length otherwise.
func (cw *compressedResponseWriter) close() {
	if !cw.wroteHeader || cw.passthrough || cw.headOnly {
		return
	}

	h := cw.Header()

	if cw.buf.Len() == 0 || cw.buf.Len() < cw.minLength {
		if cw.buf.Len() > 0 {
			h.Set("Content-Length", strconv.Itoa(cw.buf.Len()))
		}

		cw.ResponseWriter.WriteHeader(cw.statusCode)
		cw.ResponseWriter.Write(cw.buf.Bytes())

		return
	}

	compressed := compress(cw.encoding, cw.buf.Bytes())

	h.Set("Content-Encoding", cw.encoding)
	h.Add("Vary", "Accept-Encoding")
	h.Set("Content-Length", strconv.Itoa(len(compressed)))

	cw.ResponseWriter.WriteHeader(cw.statusCode)
	cw.ResponseWriter.Write(compressed)
}

// Unwrap returns the underlying ResponseWriter for middleware chaining.
func (cw *compressedResponseWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// declaredBelow reports whether a declared Content-Length is below the
// compression minimum.
func declaredBelow(h http.Header, minLength int) bool {
	if minLength <= 0 {
		return false
	}

	n, err := strconv.Atoi(h.Get("Content-Length"))
	return err == nil && n < minLength
}

// compressor is the interface shared by gzip and brotli writers.
type compressor interface {
	io.WriteCloser
	Reset(w io.Writer)
}

// compress encodes b with the negotiated method using pooled writers.
func compress(encoding string, b []byte) []byte {
	var pool *sync.Pool
	if encoding == "br" {
		pool = &brotliPool
	} else {
		pool = &gzipPool
	}

	cw := pool.Get().(compressor)
	defer pool.Put(cw)

	var out bytes.Buffer
	cw.Reset(&out)
	cw.Write(b)
	cw.Close()

	return out.Bytes()
}
