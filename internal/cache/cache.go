// Package cache provides the backends warm results are written into.
package cache

import (
	"context"
	"sync"
	"time"
)

// Writer is the destination for warmed values. Implementations must be safe
// for concurrent use.
type Writer interface {
	// Write stores a value under namespace:key with the given TTL.
	// A zero or negative TTL stores without expiry.
	Write(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
}

// Closer is implemented by backends that hold external resources.
type Closer interface {
	Close() error
}

func cacheKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}

type memoryEntry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is an in-process Writer backed by a map. It is the default
// backend and the one tests exercise.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Write stores value under namespace:key.
func (c *MemoryCache) Write(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[cacheKey(namespace, key)] = memoryEntry{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Get returns a stored value if present and not expired.
func (c *MemoryCache) Get(namespace, key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(namespace, key)]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
