package gateway

import (
	"net/http"
	"strconv"

	"github.com/a-h/pkggate/npm/contenttype"
	"github.com/a-h/pkggate/npm/models"
)

// serveFile writes a raw file response: status 200, correct content-type,
// Content-Length, long-lived Cache-Control, Last-Modified, ETag, and a
// Cache-Tag classifying it as a file (plus its extension, if any).
func serveFile(w http.ResponseWriter, entry *models.Entry) {
	header := w.Header()
	header.Set("Content-Type", contenttype.ResponseContentType(entry.ContentType))
	header.Set("Content-Length", strconv.FormatInt(entry.Size, 10))
	header.Set("Cache-Control", "public, max-age=31536000")
	header.Set("Last-Modified", entry.LastModified)
	header.Set("ETag", contenttype.ETag(entry.Content))
	header.Set("Cache-Tag", fileTag(entry.Path))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(entry.Content)
}

func fileTag(path string) string {
	ext := extOf(path)
	if ext == "" {
		return "file"
	}
	return "file, " + ext
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return ""
		}
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return ""
}
