package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process IdempotencyCache for tests and single-node
// deployments without redis.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]time.Time{}}
}

// Reserve sets the key unless a live reservation exists.
func (c *MemoryCache) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if expiry, ok := c.entries[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	c.entries[key] = time.Now().Add(ttl)
	return true, nil
}

// Release drops a reservation.
func (c *MemoryCache) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
