package payment

import (
	"sync"
	"time"
)

// Cache is the per-endpoint payment-parameters cache (C1): mapping endpoint
// path → Params, with lazy expiry on read. A mutex+map with lazy
// expiry-on-read, keyed by endpoint path instead of an opaque cache key and
// holding Params instead of []byte.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Params
	ttl     time.Duration
}

// NewCache creates a payment cache with the given entry TTL (default 1h
// when ttl <= 0).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		entries: make(map[string]Params),
		ttl:     ttl,
	}
}

// Get returns the cached parameters for endpoint, evicting on read if the
// entry's TTL has elapsed.
func (c *Cache) Get(endpoint string) (Params, bool) {
	c.mu.RLock()
	p, ok := c.entries[endpoint]
	c.mu.RUnlock()
	if !ok {
		return Params{}, false
	}
	if time.Since(p.CachedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, endpoint)
		c.mu.Unlock()
		return Params{}, false
	}
	return p, true
}

// Set stores params under endpoint, stamping CachedAt to now.
func (c *Cache) Set(endpoint string, p Params) {
	p.CachedAt = time.Now()
	c.mu.Lock()
	c.entries[endpoint] = p
	c.mu.Unlock()
}

// Invalidate removes any cached entry for endpoint.
func (c *Cache) Invalidate(endpoint string) {
	c.mu.Lock()
	delete(c.entries, endpoint)
	c.mu.Unlock()
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
