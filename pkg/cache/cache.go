package cache

import (
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is an in-memory map with per-key TTL, safe for concurrent use
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	now   func() time.Time
}

// New creates an empty cache
func New[V any]() *Cache[V] {
	return &Cache[V]{items: map[string]entry[V]{}, now: time.Now}
}

// Set stores value under key until ttl elapses
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Get returns the value stored under key if it has not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero V
	e, ok := c.items[key]
	if !ok || c.now().After(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Delete removes a key from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Invalidate removes all items matching a prefix
func (c *Cache[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Purge drops expired entries and returns how many were removed
func (c *Cache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
