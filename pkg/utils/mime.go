package utils

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectMime sniffs the MIME type of data. When sniffing is inconclusive it
// falls back to the extension of name, and finally to application/octet-stream.
func DetectMime(data []byte, name string) string {
	if len(data) > 0 {
		sniffed := http.DetectContentType(data)
		if sniffed != "application/octet-stream" {
			// DetectContentType appends parameters for text types; keep the media type only.
			if i := strings.IndexByte(sniffed, ';'); i >= 0 {
				sniffed = strings.TrimSpace(sniffed[:i])
			}
			return sniffed
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if i := strings.IndexByte(byExt, ';'); i >= 0 {
			byExt = strings.TrimSpace(byExt[:i])
		}
		return byExt
	}
	return "application/octet-stream"
}

// IsImageMime reports whether mimeType names an image format.
func IsImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
