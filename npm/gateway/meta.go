package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/a-h/pkggate/npm/metadata"
	"github.com/a-h/pkggate/npm/models"
	"github.com/a-h/pkggate/npm/pathname"
	"github.com/a-h/pkggate/npm/resolve"
)

// serveMeta serves the "?meta" response mode: a directory listing if the
// request path ends in "/", else single-file metadata.
func (h *Handler) serveMeta(w http.ResponseWriter, r *http.Request, pn pathname.Pathname, res resolve.Result) {
	tarball, err := h.Client.GetPackage(r.Context(), pn.Name, res.Version)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var m models.Metadata
	if strings.HasSuffix(r.URL.Path, "/") {
		dir, err := metadata.Directory(tarball, metadata.StripTrailingSlash(pn.Filename))
		if err != nil {
			h.writeError(w, err)
			return
		}
		m = dir
	} else {
		file, err := metadata.File(tarball, pn.Filename)
		if err != nil {
			h.writeError(w, err)
			return
		}
		m = file
	}

	body, err := json.Marshal(m)
	if err != nil {
		h.writeError(w, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "application/json; charset=utf-8")
	header.Set("Cache-Control", "public, max-age=31536000")
	header.Set("Cache-Tag", "meta")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
