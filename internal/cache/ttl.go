// Package cache is a small in-memory TTL cache for rendered responses.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	updatedAt time.Time
}

// TTL caches values per key for a fixed duration. A zero TTL disables
// caching: Get always misses and Put is a no-op.
type TTL[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
}

// New returns an empty cache.
func New[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{ttl: ttl, now: time.Now, entries: make(map[string]entry[V])}
}

// WithClock replaces the time source; used by tests.
func (c *TTL[V]) WithClock(now func() time.Time) *TTL[V] {
	c.now = now
	return c
}

// Get returns the fresh value for key.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.updatedAt) >= c.ttl {
		return zero, false
	}
	return e.value, true
}

// Put stores value under key and drops expired entries.
func (c *TTL[V]) Put(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.Sub(e.updatedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry[V]{value: value, updatedAt: now}
}

// Invalidate forgets every entry, e.g. after a write.
func (c *TTL[V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len is the number of stored entries, fresh or not.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
