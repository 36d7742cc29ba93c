// Package cache provides the small read-through snapshot cache used by the
// metadata store. Centralizing expiry and invalidation here keeps every
// mutating code path on the single Invalidate entry point.
package cache

import (
	"context"
	"sync"
	"time"
)

// Snapshot caches one value for a fixed TTL. On a failed refresh it serves
// the previous value if one exists, so transient store outages do not take
// reads down with them.
type Snapshot[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	value   T
	loaded  bool
	expires time.Time
}

// NewSnapshot builds a cache holding values for ttl.
func NewSnapshot[T any](ttl time.Duration) *Snapshot[T] {
	return &Snapshot[T]{ttl: ttl}
}

// Get returns the cached value, refreshing through fetch when absent or
// expired. A fetch error is swallowed when stale data is available.
func (c *Snapshot[T]) Get(ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && time.Now().Before(c.expires) {
		return c.value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		if c.loaded {
			return c.value, nil // stale, but better than failing the read
		}
		var zero T
		return zero, err
	}

	c.value = value
	c.loaded = true
	c.expires = time.Now().Add(c.ttl)
	return value, nil
}

// Invalidate drops the cached value; the next Get refetches.
func (c *Snapshot[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	var zero T
	c.value = zero
}
