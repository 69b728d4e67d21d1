package registry

import (
	"context"
	"net/url"
	"path"
	"time"

	"github.com/a-h/kv"
	"github.com/a-h/pkggate/npm/models"
)

// sharedCache is the optional L2 tier for component C's caches: a kv.Store
// shared across a fleet of gateway instances so a version/config resolution
// on one instance saves every other instance the upstream round-trip. It
// sits behind the L1 in-memory cache (cache.go) and is consulted only on an
// L1 miss.
type sharedCache struct {
	store kv.Store
	ttl   time.Duration
}

func newSharedCache(store kv.Store, ttl time.Duration) *sharedCache {
	return &sharedCache{store: store, ttl: ttl}
}

type sharedRecord[V any] struct {
	Value     V         `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func versionsKey(name string) string {
	return path.Join("/npm-cache/versions", url.PathEscape(name))
}

func configKey(name, version string) string {
	return path.Join("/npm-cache/config", url.PathEscape(name), url.PathEscape(version))
}

func (s *sharedCache) getVersions(ctx context.Context, name string) (vt models.VersionsAndTags, ok bool, err error) {
	return getShared[models.VersionsAndTags](ctx, s, versionsKey(name))
}

func (s *sharedCache) putVersions(ctx context.Context, name string, vt models.VersionsAndTags) error {
	return putShared(ctx, s, versionsKey(name), vt)
}

func (s *sharedCache) getConfig(ctx context.Context, name, version string) (cfg *models.PackageConfig, ok bool, err error) {
	return getShared[*models.PackageConfig](ctx, s, configKey(name, version))
}

func (s *sharedCache) putConfig(ctx context.Context, name, version string, cfg *models.PackageConfig) error {
	return putShared(ctx, s, configKey(name, version), cfg)
}

func getShared[V any](ctx context.Context, s *sharedCache, key string) (value V, ok bool, err error) {
	var rec sharedRecord[V]
	_, found, err := s.store.Get(ctx, key, &rec)
	if err != nil || !found {
		return value, false, err
	}
	if time.Now().After(rec.ExpiresAt) {
		return value, false, nil
	}
	return rec.Value, true, nil
}

func putShared[V any](ctx context.Context, s *sharedCache, key string, value V) error {
	rec := sharedRecord[V]{Value: value, ExpiresAt: time.Now().Add(s.ttl)}
	return s.store.Put(ctx, key, -1, rec)
}
