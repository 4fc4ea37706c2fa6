package staticfiles

import (
	"path/filepath"
	"strings"
)

// extensionTypes is the static extension to MIME type mapping used for
// responses. Unknown extensions fall back to application/octet-stream.
var extensionTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".json":  "application/json",
	".map":   "application/json",
	".txt":   "text/plain; charset=utf-8",
	".md":    "text/markdown; charset=utf-8",
	".xml":   "application/xml",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".pdf":   "application/pdf",
	".wasm":  "application/wasm",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".yaml":  "application/yaml",
	".yml":   "application/yaml",
}

// TypeByExtension returns the MIME type for a file path based on its
// extension.
func TypeByExtension(p string) string {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(p))]; ok {
		return t
	}

	return "application/octet-stream"
}
