package gateway

import (
	"context"
	"net/http"

	"github.com/a-h/pkggate/npm/apperror"
	"github.com/a-h/pkggate/npm/contenttype"
	"github.com/a-h/pkggate/npm/models"
	"github.com/a-h/pkggate/npm/rewrite"
)

// serveModule rewrites entry's content as an ES module and serves it, per
// the "?module" response mode. Only application/javascript entries are
// eligible; anything else (notably HTML) is rejected.
func (h *Handler) serveModule(ctx context.Context, w http.ResponseWriter, entry *models.Entry, cfg models.PackageConfig) {
	if entry.ContentType != "application/javascript" {
		h.writeError(w, apperror.New(apperror.InvalidContentTypeForModuleMode,
			"module mode requires an application/javascript entry, got "+entry.ContentType))
		return
	}

	origin := h.Origin
	if origin == "" {
		origin = rewrite.DefaultOrigin
	}

	out, err := rewrite.Rewrite(entry.Content, origin, cfg.Dependencies())
	if err != nil {
		h.Metrics.IncrementModuleRewriteFailure(ctx)
		h.writeError(w, err)
		return
	}

	content := []byte(out)
	header := w.Header()
	header.Set("Content-Type", "application/javascript; charset=utf-8")
	header.Set("Cache-Control", "public, max-age=31536000")
	header.Set("ETag", contenttype.ETag(content))
	header.Set("Cache-Tag", "file, js-file, js-module")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
