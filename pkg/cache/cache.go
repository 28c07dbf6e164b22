package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const defaultMaxEntries = 128

// entry pairs a cached value with its absolute expiry timestamp.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL-bounded read-through cache with single-flight fetches.
// The backing store is a size-bounded LRU; expiry is checked against an
// injectable clock so tests can control time.
type Cache[V any] struct {
	ttl     time.Duration
	entries *lru.Cache[string, entry[V]]
	group   singleflight.Group
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces the time source, for testing with a fake clock.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New creates a cache whose entries expire ttl after being stored.
func New[V any](ttl time.Duration, maxEntries int, opts ...Option[V]) (*Cache[V], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %v", ttl)
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	backing, err := lru.New[string, entry[V]](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create backing store: %w", err)
	}

	c := &Cache[V]{
		ttl:     ttl,
		entries: backing,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GetOrFetch returns the cached value for key, or invokes fetch on a miss or
// expired entry. The second return reports whether the value was served from
// a live cache entry. Concurrent callers for the same key share one fetch;
// a fetch error leaves any previous entry untouched.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (V, bool, error) {
	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return v, true, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller in the same flight window may have stored it.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.entries.Add(key, entry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}

	return v.(V), false, nil
}

// Invalidate removes the entry for key, if present.
func (c *Cache[V]) Invalidate(key string) {
	c.entries.Remove(key)
}

// Stats reports cumulative hit and miss counts.
func (c *Cache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	e, ok := c.entries.Get(key)
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}
