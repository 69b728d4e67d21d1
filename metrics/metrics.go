package metrics

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func New() (m Metrics, err error) {
	exporter, err := prometheus.New()
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("github.com/a-h/pkggate")

	if m.TotalDownloads, err = meter.Int64Counter("total_downloads", metric.WithDescription("Total number of successful downloads served")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create total_downloads counter: %w", err)
	}
	if m.DownloadedBytesTotal, err = meter.Int64Counter("downloaded_bytes_total", metric.WithDescription("Total bytes downloaded from depot")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create downloaded_bytes_total counter: %w", err)
	}
	if m.AccessLogErrorsTotal, err = meter.Int64Counter("access_log_errors_total", metric.WithDescription("Total number of access log processing errors")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create access_log_errors_total counter: %w", err)
	}
	if m.PackageUploadsTotal, err = meter.Int64Counter("package_uploads_total", metric.WithDescription("Total number of successfully uploaded package files")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create package_uploads_total counter: %w", err)
	}
	if m.UploadedBytesTotal, err = meter.Int64Counter("uploaded_bytes_total", metric.WithDescription("Total bytes uploaded into depot")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create uploaded_bytes_total counter: %w", err)
	}
	if m.DownloadCounterErrorsTotal, err = meter.Int64Counter("download_counter_errors_total", metric.WithDescription("Total number of popularity-counter recording failures")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create download_counter_errors_total counter: %w", err)
	}
	if m.CacheHitsTotal, err = meter.Int64Counter("cache_hits_total", metric.WithDescription("Total registry cache hits, by tier")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create cache_hits_total counter: %w", err)
	}
	if m.CacheMissesTotal, err = meter.Int64Counter("cache_misses_total", metric.WithDescription("Total registry cache misses, by tier")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create cache_misses_total counter: %w", err)
	}
	if m.RedirectsTotal, err = meter.Int64Counter("redirects_total", metric.WithDescription("Total 302 responses, by kind")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create redirects_total counter: %w", err)
	}
	if m.ModuleRewriteFailuresTotal, err = meter.Int64Counter("module_rewrite_failures_total", metric.WithDescription("Total failed module-rewrite attempts")); err != nil {
		return Metrics{}, fmt.Errorf("failed to create module_rewrite_failures_total counter: %w", err)
	}

	return m, nil
}

type Metrics struct {
	TotalDownloads             metric.Int64Counter
	DownloadedBytesTotal       metric.Int64Counter
	AccessLogErrorsTotal       metric.Int64Counter
	PackageUploadsTotal        metric.Int64Counter
	UploadedBytesTotal         metric.Int64Counter
	DownloadCounterErrorsTotal metric.Int64Counter
	CacheHitsTotal             metric.Int64Counter
	CacheMissesTotal           metric.Int64Counter
	RedirectsTotal             metric.Int64Counter
	ModuleRewriteFailuresTotal metric.Int64Counter
}

func ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())
	return http.ListenAndServe(addr, mux)
}

func (m Metrics) IncrementDownloadMetrics(ctx context.Context, ecosystem string, bytes int64) {
	if m.TotalDownloads == nil || m.DownloadedBytesTotal == nil {
		return
	}
	m.TotalDownloads.Add(ctx, 1, metric.WithAttributes(attribute.String("ecosystem", ecosystem)))
	m.DownloadedBytesTotal.Add(ctx, bytes, metric.WithAttributes(attribute.String("ecosystem", ecosystem)))
}

func (m Metrics) IncrementAccessLogErrors(ctx context.Context) {
	if m.AccessLogErrorsTotal == nil {
		return
	}
	m.AccessLogErrorsTotal.Add(ctx, 1)
}

func (m Metrics) IncrementUploadMetrics(ctx context.Context, ecosystem string, bytes int64) {
	if m.PackageUploadsTotal == nil || m.UploadedBytesTotal == nil {
		return
	}
	m.PackageUploadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("ecosystem", ecosystem)))
	m.UploadedBytesTotal.Add(ctx, bytes, metric.WithAttributes(attribute.String("ecosystem", ecosystem)))
}

// IncrementDownloadCounterErrors records a failure to persist a popularity
// event for group (e.g. "npm").
func (m Metrics) IncrementDownloadCounterErrors(ctx context.Context, group string) {
	if m.DownloadCounterErrorsTotal == nil {
		return
	}
	m.DownloadCounterErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("group", group)))
}

// IncrementCacheHit records an L1 or L2 registry-cache hit for key (e.g.
// "versions", "config", "tarball").
func (m Metrics) IncrementCacheHit(ctx context.Context, tier, key string) {
	if m.CacheHitsTotal == nil {
		return
	}
	m.CacheHitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier), attribute.String("key", key)))
}

// IncrementCacheMiss records an L1 or L2 registry-cache miss for key.
func (m Metrics) IncrementCacheMiss(ctx context.Context, tier, key string) {
	if m.CacheMissesTotal == nil {
		return
	}
	m.CacheMissesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier), attribute.String("key", key)))
}

// IncrementRedirect records a 302 response of the given kind (e.g.
// "semver-redirect", "filename-redirect", "file-redirect", "index-redirect").
func (m Metrics) IncrementRedirect(ctx context.Context, kind string) {
	if m.RedirectsTotal == nil {
		return
	}
	m.RedirectsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// IncrementModuleRewriteFailure records a failed "?module" rewrite attempt.
func (m Metrics) IncrementModuleRewriteFailure(ctx context.Context) {
	if m.ModuleRewriteFailuresTotal == nil {
		return
	}
	m.ModuleRewriteFailuresTotal.Add(ctx, 1)
}
