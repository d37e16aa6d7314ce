// SPDX-License-Identifier: MIT

// Package cache provides the probe cache with TTL support and
// interchangeable memory, Redis and Badger backends.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellytube/ytbridge/internal/metrics"
)

// Key namespaces. These match the wire format earlier deployments used in
// Redis, so existing caches stay valid across upgrades.
const (
	probeKeyPrefix = "ytdlp:video:"
	metaKeyPrefix  = "meta:item:"
)

// ProbeKey returns the cache key for a video's raw probe JSON.
func ProbeKey(videoID string) string { return probeKeyPrefix + videoID }

// MetaKey returns the cache key for a video's discovery metadata.
func MetaKey(videoID string) string { return metaKeyPrefix + videoID }

// Cache provides thread-safe byte caching with expiration support.
type Cache interface {
	// Get retrieves a value from the cache. Returns false if not found or expired.
	Get(key string) ([]byte, bool)
	// Set stores a value in the cache with the specified TTL.
	Set(key string, value []byte, ttl time.Duration)
	// Delete removes a value from the cache.
	Delete(key string)
	// Clear removes all values from the cache.
	Clear()
	// Stats returns cache statistics.
	Stats() CacheStats
	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// CacheStats holds cache performance metrics.
type CacheStats struct {
	Backend     string // Backend name ("memory", "redis", "badger")
	Hits        int64  // Number of successful Get operations
	Misses      int64  // Number of failed Get operations (not found or expired)
	Sets        int64  // Number of Set operations
	Evictions   int64  // Number of expired entries cleaned up
	CurrentSize int    // Current number of cached entries
}

// entry represents a cached value with expiration time.
type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired() bool {
	return time.Now().After(e.expiration)
}

// memoryCache is an in-memory implementation of Cache.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	evicted atomic.Int64
	janitor *janitor
}

// NewMemoryCache creates a new in-memory cache with automatic cleanup.
// The cleanupInterval determines how often expired entries are removed.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
	}

	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}

	return c
}

// Get retrieves a value from the cache.
func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.isExpired() {
		c.misses.Add(1)
		metrics.IncCacheOp("memory", "get", "miss")
		return nil, false
	}

	c.hits.Add(1)
	metrics.IncCacheOp("memory", "get", "hit")
	return e.value, true
}

// Set stores a value in the cache.
func (c *memoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &entry{
		value:      value,
		expiration: time.Now().Add(ttl),
	}
	c.mu.Unlock()

	c.sets.Add(1)
	metrics.IncCacheOp("memory", "set", "ok")
}

// Delete removes a value from the cache.
func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all values from the cache.
func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Stats returns cache statistics.
func (c *memoryCache) Stats() CacheStats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return CacheStats{
		Backend:     "memory",
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evicted.Load(),
		CurrentSize: size,
	}
}

// HealthCheck always succeeds for the in-process backend.
func (c *memoryCache) HealthCheck(context.Context) error { return nil }

// Close stops the background cleanup goroutine.
func (c *memoryCache) Close() error {
	if c.janitor != nil {
		close(c.janitor.stop)
	}
	return nil
}

// deleteExpired removes all expired entries from the cache.
// Returns the number of entries deleted.
func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.isExpired() {
			delete(c.entries, key)
			count++
		}
	}

	c.evicted.Add(int64(count))
	return count
}

// janitor performs periodic cleanup of expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}
