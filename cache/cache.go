// Package cache provides a small generic, concurrency-safe TTL cache.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means never
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a thread-safe map with per-item expiry.
type Cache[K comparable, V any] struct {
	mu         sync.RWMutex
	items      map[K]entry[V]
	defaultTTL time.Duration
	now        func() time.Time

	janitorInterval time.Duration
	stopOnce        sync.Once
	stop            chan struct{}
}

// Option is a functional option type for Cache configuration.
type Option[K comparable, V any] func(*Cache[K, V])

// WithDefaultTTL sets the TTL used by Set. Zero keeps items forever.
func WithDefaultTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) { c.defaultTTL = ttl }
}

// WithJanitorInterval starts a background sweep of expired items.
func WithJanitorInterval[K comparable, V any](interval time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) { c.janitorInterval = interval }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

func NewCache[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		items: make(map[K]entry[V]),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.janitorInterval > 0 {
		go c.janitor()
	}
	return c
}

func (c *Cache[K, V]) janitor() {
	ticker := time.NewTicker(c.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}

// Set stores v under k with the default TTL.
func (c *Cache[K, V]) Set(k K, v V) {
	c.SetWithTTL(k, v, c.defaultTTL)
}

// SetWithTTL stores v under k. A zero ttl never expires; a negative ttl
// removes k instead.
func (c *Cache[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl < 0 {
		delete(c.items, k)
		return
	}
	e := entry[V]{value: v}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.items[k] = e
}

// Get returns the live value stored under k.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[k]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(c.now()) {
		c.Delete(k)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[K, V]) Delete(k K) {
	c.mu.Lock()
	delete(c.items, k)
	c.mu.Unlock()
}

// DeleteExpired drops every expired item and returns how many were removed.
func (c *Cache[K, V]) DeleteExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Range calls f for every live item until f returns false. f runs on a
// snapshot, so it may call back into the cache.
func (c *Cache[K, V]) Range(f func(key K, value V) bool) {
	now := c.now()
	c.mu.RLock()
	snapshot := make(map[K]V, len(c.items))
	for k, e := range c.items {
		if !e.expired(now) {
			snapshot[k] = e.value
		}
	}
	c.mu.RUnlock()
	for k, v := range snapshot {
		if !f(k, v) {
			return
		}
	}
}

// Len counts stored items, including expired ones not yet swept.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor. It is safe to call more than once.
func (c *Cache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}
