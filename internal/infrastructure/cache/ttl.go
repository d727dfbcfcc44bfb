package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
)

// entry holds a cached value together with the time it was stored.
type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// TTL is an in-process cache whose entries expire a fixed duration after insertion.
// Expired entries are never returned; they are removed lazily on Get or by Purge.
// Contents are not persisted and are lost on restart.
//
// TTL is safe for concurrent use. It is a best-effort cache: two callers that miss
// the same key concurrently will both fill it, and the later Set wins.
type TTL[K comparable, V any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[K]entry[V]
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewTTL creates a cache whose entries live for ttl.
// name labels the cache in metrics (e.g. metrics.CacheTypeCatalog).
func NewTTL[K comparable, V any](name string, ttl time.Duration, opts ...Option) *TTL[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &TTL[K, V]{
		name:  name,
		ttl:   ttl,
		now:   o.now,
		items: make(map[K]entry[V]),
	}
}

// Get returns the value for key if present and younger than the TTL.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		c.record(metrics.CacheOpGet, metrics.CacheStatusMiss)
		return zero, false
	}

	if !c.fresh(e, c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have refreshed it.
		if cur, ok := c.items[key]; ok && !c.fresh(cur, c.now()) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		c.record(metrics.CacheOpGet, metrics.CacheStatusExpired)
		return zero, false
	}

	c.record(metrics.CacheOpGet, metrics.CacheStatusHit)
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, insertedAt: c.now()}
	c.mu.Unlock()

	c.record(metrics.CacheOpSet, metrics.CacheStatusSuccess)
}

// Invalidate removes key. Removing a missing key is a no-op.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()

	c.record(metrics.CacheOpDelete, metrics.CacheStatusSuccess)
}

// Clear removes every entry.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	clear(c.items)
	c.mu.Unlock()

	c.record(metrics.CacheOpClear, metrics.CacheStatusSuccess)
}

// Purge removes every expired entry and returns how many were dropped.
func (c *TTL[K, V]) Purge() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for k, e := range c.items {
		if !c.fresh(e, now) {
			delete(c.items, k)
			removed++
		}
	}
	c.mu.Unlock()

	c.record(metrics.CacheOpPurge, metrics.CacheStatusSuccess)
	return removed
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// TTL returns the configured time-to-live.
func (c *TTL[K, V]) TTL() time.Duration {
	return c.ttl
}

// Run purges expired entries every interval until ctx is cancelled.
func (c *TTL[K, V]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}

func (c *TTL[K, V]) fresh(e entry[V], now time.Time) bool {
	return now.Sub(e.insertedAt) < c.ttl
}

func (c *TTL[K, V]) record(op, status string) {
	metrics.CacheOperationsTotal.WithLabelValues(op, status, c.name).Inc()
}
