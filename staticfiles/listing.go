package staticfiles

import (
	"html"
	"os"
	"sort"
	"strings"
)

const listingStyle = "body { font-family: monospace; margin: 20px; } " +
	"h1 { color: #333; } " +
	"ul { list-style: none; padding: 0; } " +
	"li { padding: 5px 0; } " +
	"a { color: #0066cc; text-decoration: none; } " +
	"a:hover { text-decoration: underline; } " +
	"hr { margin-top: 20px; border: none; border-top: 1px solid #ccc; }"

// renderListing builds the auto-index HTML page for a directory.
// Directories sort before files; each group is ordered alphabetically,
// case-insensitive. Non-root listings start with a ".." parent entry.
func renderListing(entries []os.DirEntry, rel string) string {
	sorted := make([]os.DirEntry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsDir() != sorted[j].IsDir() {
			return sorted[i].IsDir()
		}

		return strings.ToLower(sorted[i].Name()) < strings.ToLower(sorted[j].Name())
	})

	title := "/"
	if rel != "" {
		title = "/" + rel
	}

	var b strings.Builder
	b.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>Index of ")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title><style>")
	b.WriteString(listingStyle)
	b.WriteString("</style></head><body><h1>Index of ")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</h1><ul>")

	if rel != "" {
		b.WriteString("<li><a href=\"")
		b.WriteString(html.EscapeString(parentHref(rel)))
		b.WriteString("\">..</a></li>")
	}

	for _, entry := range sorted {
		href := "/" + entry.Name()
		if rel != "" {
			href = "/" + strings.TrimSuffix(rel, "/") + "/" + entry.Name()
		}

		if entry.IsDir() {
			href += "/"
		}

		b.WriteString("<li><a href=\"")
		b.WriteString(html.EscapeString(href))
		b.WriteString("\">")
		b.WriteString(html.EscapeString(entry.Name()))
		b.WriteString("</a></li>")
	}

	b.WriteString("</ul><hr><address>statiker</address></body></html>")

	return b.String()
}
