package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/pkggate/npm/apperror"
	"github.com/a-h/pkggate/npm/redirect"
)

// writeError maps err to its HTTP status and Cache-Tag (see apperror.Error)
// and writes a plain-text body. An err that isn't an *apperror.Error is
// treated as apperror.Other.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(apperror.Other, "unexpected error", err)
	}

	status := appErr.Status()
	if status >= 500 {
		h.Log.Error("request failed", "status", status, "error", appErr.Error())
	} else {
		h.Log.Debug("request rejected", "status", status, "error", appErr.Error())
	}

	header := w.Header()
	if status == http.StatusNotFound {
		header.Set("Cache-Control", "public, max-age=31536000")
	}
	if tag, ok := appErr.CacheTag(); ok {
		header.Set("Cache-Tag", tag)
	}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(appErr.Message))
}

// writeRedirect writes a 302 response carrying r's Location, Cache-Control,
// and Cache-Tag headers, and records the redirect kind in h.Metrics.
func (h *Handler) writeRedirect(ctx context.Context, w http.ResponseWriter, r redirect.Redirect) {
	h.Metrics.IncrementRedirect(ctx, strings.TrimPrefix(r.CacheTag, "redirect, "))

	header := w.Header()
	header.Set("Location", r.Location)
	header.Set("Cache-Control", r.CacheControl)
	header.Set("Cache-Tag", r.CacheTag)
	w.WriteHeader(http.StatusFound)
}
