// Package registry is the gateway's upstream npm registry client: it
// fetches packuments and tarballs, and memoizes the versions/dist-tags and
// per-version configs derived from packuments with a bounded,
// single-flighted, TTL'd cache (see cache.go). Tarballs are not held in
// memory; they are only persisted when a tarball cache is configured.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/kv"
	"github.com/a-h/pkggate/metrics"
	"github.com/a-h/pkggate/npm/apperror"
	"github.com/a-h/pkggate/npm/models"
	"github.com/a-h/pkggate/storage"
)

const (
	cacheCapacity = 200
	cacheTTL      = 5 * time.Minute
)

const DefaultRegistryURL = "https://registry.npmjs.org"

// Client fetches package metadata and tarballs from an upstream npm-compatible
// registry, caching the metadata in memory.
type Client struct {
	httpClient  *http.Client
	registryURL string

	versions *cache[models.VersionsAndTags]
	configs  *cache[*models.PackageConfig]

	// tarballCache optionally persists fetched tarballs to a secondary
	// storage tier (filesystem or S3) so a process restart doesn't re-fetch
	// every package from the upstream registry.
	tarballCache storage.Storage

	// shared optionally backs the version/config caches with a kv.Store so a
	// fleet of gateway instances shares resolutions instead of each holding
	// its own cold L1 cache.
	shared *sharedCache

	metrics metrics.Metrics
}

// New constructs a Client against registryURL using an http.Client with a
// 1-second TCP keep-alive, matching the upstream gateway's own client
// configuration.
func New(registryURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:     (&net.Dialer{KeepAlive: time.Second}).DialContext,
				IdleConnTimeout: 90 * time.Second,
			},
			Timeout: 30 * time.Second,
		},
		registryURL: strings.TrimSuffix(registryURL, "/"),
		versions:    newCache[models.VersionsAndTags](cacheCapacity, cacheTTL),
		configs:     newCache[*models.PackageConfig](cacheCapacity, cacheTTL),
	}
}

// WithTarballCache returns a copy of c that persists fetched tarballs to s.
func (c *Client) WithTarballCache(s storage.Storage) *Client {
	clone := *c
	clone.tarballCache = s
	return &clone
}

// WithMetrics returns a copy of c that reports cache hit/miss counts to m.
func (c *Client) WithMetrics(m metrics.Metrics) *Client {
	clone := *c
	clone.metrics = m
	return &clone
}

// WithSharedCache returns a copy of c whose version/config caches fall back
// to store (an L2 tier, see sharedCache) on an L1 miss, so multiple gateway
// processes pointed at the same store share resolutions.
func (c *Client) WithSharedCache(store kv.Store) *Client {
	clone := *c
	clone.shared = newSharedCache(store, cacheTTL)
	return &clone
}

// packumentDoc mirrors the registry's packument JSON closely enough to
// decode versions/dist-tags/config in one pass.
type packumentDoc struct {
	Versions map[string]map[string]any `json:"versions"`
	DistTags map[string]string         `json:"dist-tags"`
}

func isScoped(name string) bool {
	return strings.HasPrefix(name, "@")
}

// encodePackageName percent-encodes the post-"@" portion of a scoped name,
// then re-prefixes "@"; unscoped names are percent-encoded wholesale.
func encodePackageName(name string) string {
	if isScoped(name) {
		return "@" + url.PathEscape(name[1:])
	}
	return url.PathEscape(name)
}

func (c *Client) fetchPkgInfo(ctx context.Context, name string) (packumentDoc, error) {
	infoURL := fmt.Sprintf("%s/%s", c.registryURL, encodePackageName(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return packumentDoc{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return packumentDoc{}, fmt.Errorf("failed to fetch package info for %q: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return packumentDoc{}, fmt.Errorf("failed to read package info body for %q: %w", name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return packumentDoc{}, fmt.Errorf("registry returned %d for %q: %s", resp.StatusCode, name, string(body))
	}

	var doc packumentDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return packumentDoc{}, fmt.Errorf("failed to parse package info for %q: %w", name, err)
	}
	return doc, nil
}

// GetVersionsAndTags returns the published versions and dist-tags for name,
// cached for cacheTTL, with concurrent requests for the same name sharing
// one upstream fetch.
func (c *Client) GetVersionsAndTags(ctx context.Context, name string) (models.VersionsAndTags, error) {
	vt, hit, err := c.versions.getOrLoad("versions-"+name, func() (models.VersionsAndTags, error) {
		if c.shared != nil {
			if shared, ok, err := c.shared.getVersions(ctx, name); err == nil && ok {
				c.recordCacheOutcome(ctx, "L2", "versions", true)
				return shared, nil
			}
			c.recordCacheOutcome(ctx, "L2", "versions", false)
		}

		doc, err := c.fetchPkgInfo(ctx, name)
		if err != nil {
			return models.VersionsAndTags{}, err
		}
		if doc.Versions == nil {
			return models.VersionsAndTags{}, fmt.Errorf("registry returned no versions for %q", name)
		}
		vt := models.VersionsAndTags{Tags: doc.DistTags}
		for v := range doc.Versions {
			vt.Versions = append(vt.Versions, v)
		}
		if c.shared != nil {
			_ = c.shared.putVersions(ctx, name, vt)
		}
		return vt, nil
	})
	c.recordCacheOutcome(ctx, "L1", "versions", hit)
	return vt, err
}

// GetPackageConfig returns the package.json config for an exact version,
// caching a negative (not found) result as well so repeated lookups of a
// nonexistent version don't hammer the upstream registry.
func (c *Client) GetPackageConfig(ctx context.Context, name, version string) (*models.PackageConfig, error) {
	cfg, hit, err := c.configs.getOrLoad(fmt.Sprintf("config-%s-%s", name, version), func() (*models.PackageConfig, error) {
		if c.shared != nil {
			if shared, ok, err := c.shared.getConfig(ctx, name, version); err == nil && ok {
				c.recordCacheOutcome(ctx, "L2", "config", true)
				return shared, nil
			}
			c.recordCacheOutcome(ctx, "L2", "config", false)
		}

		doc, err := c.fetchPkgInfo(ctx, name)
		if err != nil {
			return nil, nil
		}
		raw, ok := doc.Versions[version]
		if !ok {
			return nil, nil
		}
		cfgBytes, err := json.Marshal(raw)
		if err != nil {
			return nil, nil
		}
		parsed, err := models.ParsePackageConfig(cfgBytes)
		if err != nil {
			return nil, nil
		}
		if c.shared != nil {
			_ = c.shared.putConfig(ctx, name, version, &parsed)
		}
		return &parsed, nil
	})
	c.recordCacheOutcome(ctx, "L1", "config", hit)
	return cfg, err
}

func (c *Client) recordCacheOutcome(ctx context.Context, tier, key string, hit bool) {
	if hit {
		c.metrics.IncrementCacheHit(ctx, tier, key)
		return
	}
	c.metrics.IncrementCacheMiss(ctx, tier, key)
}

// GetPackage fetches the tarball bytes for name@version, consulting the
// optional persistent tarball cache before falling back to the upstream
// registry and, on a miss, writing the fetched bytes through to it.
func (c *Client) GetPackage(ctx context.Context, name, version string) ([]byte, error) {
	cacheKey := fmt.Sprintf("%s/%s.tgz", name, version)

	if c.tarballCache != nil {
		if r, exists, err := c.tarballCache.Get(ctx, cacheKey); err == nil && exists {
			defer r.Close()
			if data, err := io.ReadAll(r); err == nil {
				c.metrics.IncrementCacheHit(ctx, "L2", "tarball")
				return data, nil
			}
		}
		c.metrics.IncrementCacheMiss(ctx, "L2", "tarball")
	}

	tarballName := name
	if isScoped(name) {
		if _, rest, ok := strings.Cut(name, "/"); ok {
			tarballName = rest
		}
	}

	tarballURL := fmt.Sprintf("%s/%s/-/%s-%s.tgz", c.registryURL, name, tarballName, version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tarball request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tarball for %s@%s: %w", name, version, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.New(apperror.NotFoundPackage, fmt.Sprintf("tarball not found for %s@%s (status %d)", name, version, resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tarball for %s@%s: %w", name, version, err)
	}

	if c.tarballCache != nil {
		if w, err := c.tarballCache.Put(ctx, cacheKey); err == nil {
			_, _ = w.Write(data)
			_ = w.Close()
		}
	}

	return data, nil
}
