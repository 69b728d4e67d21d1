package registry

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cache is a bounded, TTL'd, single-flighted memoization of upstream
// registry lookups. None of the pack's example repos import a third-party
// LRU library, and the eviction policy needed here (size + TTL, negative
// results cached as a zero value) is small enough that a container/list +
// map combination - the same standard-library pairing the teacher itself
// reaches for in its own small in-memory counters - is a better fit than
// pulling in a dependency none of the corpus uses.
type cache[V any] struct {
	mu       sync.Mutex
	ll       *list.List
	items    map[string]*list.Element
	capacity int
	ttl      time.Duration
	group    singleflight.Group
}

type cacheEntry[V any] struct {
	key     string
	value   V
	expires time.Time
}

func newCache[V any](capacity int, ttl time.Duration) *cache[V] {
	return &cache[V]{
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		capacity: capacity,
		ttl:      ttl,
	}
}

func (c *cache[V]) get(key string) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.items[key]
	if !found {
		return value, false
	}
	entry := el.Value.(*cacheEntry[V])
	if time.Now().After(entry.expires) {
		c.ll.Remove(el)
		delete(c.items, key)
		return value, false
	}
	c.ll.MoveToFront(el)
	return entry.value, true
}

func (c *cache[V]) set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, found := c.items[key]; found {
		el.Value.(*cacheEntry[V]).value = value
		el.Value.(*cacheEntry[V]).expires = time.Now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry[V]{key: key, value: value, expires: time.Now().Add(c.ttl)})
	c.items[key] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry[V]).key)
	}
}

// getOrLoad returns the cached value for key, or calls load exactly once
// across any number of concurrent callers sharing the same key, caching
// (and returning) its result - including a returned error, which is never
// cached so a later call can retry. hit reports whether the value came from
// the cache rather than a fresh call to load.
func (c *cache[V]) getOrLoad(key string, load func() (V, error)) (value V, hit bool, err error) {
	if value, ok := c.get(key); ok {
		return value, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if value, ok := c.get(key); ok {
			return value, nil
		}
		loaded, err := load()
		if err != nil {
			return loaded, err
		}
		c.set(key, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return v.(V), false, nil
}
