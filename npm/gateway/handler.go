// Package gateway wires components A-K into the gateway's HTTP dispatch:
// parse path, validate name, resolve version, load config, redirect or
// find the entry, then serve it as a file, module, or metadata response.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/a-h/pkggate/downloadcounter"
	"github.com/a-h/pkggate/metrics"
	"github.com/a-h/pkggate/npm/apperror"
	"github.com/a-h/pkggate/npm/pathname"
	"github.com/a-h/pkggate/npm/pkgname"
	"github.com/a-h/pkggate/npm/redirect"
	"github.com/a-h/pkggate/npm/registry"
	"github.com/a-h/pkggate/npm/resolve"
	"github.com/a-h/pkggate/npm/tarfind"
)

// Handler serves the gateway's primary route:
// GET /<pkg>[@<ver>][/<file>][?query].
type Handler struct {
	Log      *slog.Logger
	Client   *registry.Client
	Origin   string
	Metrics  metrics.Metrics
	Requests chan<- downloadcounter.DownloadEvent
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pn, err := pathname.Parse(r.URL.Path)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := pkgname.Validate(pn.Name); err != nil {
		h.writeError(w, err)
		return
	}

	ctx := r.Context()
	res, err := resolve.Resolve(ctx, h.Client, pn.Name, pn.Version)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if res.Redirected {
		loc := redirect.PackageURL(pn.Name, res.Version, pn.Filename, r.URL.RawQuery)
		h.writeRedirect(ctx, w, redirect.Redirect{
			Location:     loc,
			CacheControl: "public, s-maxage=600, max-age=60",
			CacheTag:     "redirect, semver-redirect",
		})
		return
	}

	query := r.URL.Query()
	_, moduleQuery := query["module"]
	_, metaQuery := query["meta"]
	mainQueryKey := query.Get("main")

	if pn.Filename == "" {
		filename, err := redirect.MissingFilename(res.Config, moduleQuery, mainQueryKey)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeRedirect(ctx, w, redirect.FilenameRedirect(pn.Name, res.Version, filename, r.URL.RawQuery))
		return
	}

	if metaQuery {
		h.serveMeta(w, r, pn, res)
		return
	}

	tarball, err := h.Client.GetPackage(ctx, pn.Name, res.Version)
	if err != nil {
		h.writeError(w, err)
		return
	}

	searchResult, err := tarfind.Search(tarball, pn.Filename)
	if err != nil {
		h.writeError(w, apperror.Wrap(apperror.Other, "failed to search tarball", err))
		return
	}

	entry, redir, err := redirect.ResolveEntry(pn.Name, res.Version, pn.Filename, r.URL.RawQuery, searchResult)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if redir != nil {
		h.writeRedirect(ctx, w, *redir)
		return
	}

	h.recordRequest(pn.Spec() + pn.Filename)

	if moduleQuery {
		h.serveModule(ctx, w, entry, res.Config)
		return
	}

	serveFile(w, entry)
}

func (h *Handler) recordRequest(spec string) {
	if h.Requests == nil {
		return
	}
	select {
	case h.Requests <- downloadcounter.DownloadEvent{Group: "npm", Name: spec}:
	default:
		h.Log.Warn("dropping request event, buffer full", slog.String("spec", spec))
	}
}
