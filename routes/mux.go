// Package routes assembles the gateway's top-level http.Handler: the
// primary package route plus a couple of static well-known paths, all
// wrapped in request logging.
package routes

import (
	"log/slog"
	"net/http"

	"github.com/a-h/pkggate/downloadcounter"
	"github.com/a-h/pkggate/handlers"
	"github.com/a-h/pkggate/metrics"
	"github.com/a-h/pkggate/npm/gateway"
	"github.com/a-h/pkggate/npm/registry"
)

// New builds the gateway's handler: GET /favicon.ico serves an empty 204 and
// GET /robots.txt a fixed allow-all body, both long-cached; everything else
// is dispatched by gateway.Handler.
func New(log *slog.Logger, client *registry.Client, origin string, m metrics.Metrics, requests chan<- downloadcounter.DownloadEvent) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	})

	gw := &gateway.Handler{
		Log:      log,
		Client:   client,
		Origin:   origin,
		Metrics:  m,
		Requests: requests,
	}
	mux.Handle("GET /", gw)

	return handlers.NewLogger(log, mux)
}
