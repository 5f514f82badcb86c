package fetcher

import (
	"mime"
	"sort"
	"strings"

	"github.com/h2non/filetype"
)

// preferredExtensions pins the extension for common web types where the
// system MIME table offers several (".jpe", ".jfif", ...) or none.
var preferredExtensions = map[string]string{
	"text/css":                 ".css",
	"text/javascript":          ".js",
	"application/javascript":   ".js",
	"application/x-javascript": ".js",
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/svg+xml":            ".svg",
	"image/webp":               ".webp",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
	"text/html":                ".html",
	"application/json":         ".json",
	"font/woff":                ".woff",
	"font/woff2":               ".woff2",
	"text/plain":               ".txt",
}

// ExtensionForContentType maps a Content-Type header value to a file
// extension with a leading dot, or "" when the type is unknown or generic.
func ExtensionForContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	mediaType = strings.ToLower(mediaType)

	if mediaType == "application/octet-stream" || mediaType == "" {
		return ""
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}

	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	sort.Strings(exts)
	return exts[0]
}

// SniffExtension infers an extension from a Content-Type header and, when
// that is missing or generic, from the magic bytes at the start of head.
func SniffExtension(contentType string, head []byte) string {
	if ext := ExtensionForContentType(contentType); ext != "" {
		return ext
	}
	if len(head) == 0 {
		return ""
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || kind.Extension == "" {
		return ""
	}
	return "." + kind.Extension
}
