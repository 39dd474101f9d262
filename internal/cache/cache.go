// Package cache is a single-process TTL cache with glob-pattern invalidation.
package cache

import (
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultTTL = 300 * time.Second

type entry[V any] struct {
	value   V
	expires time.Time
}

type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Cache is safe for concurrent use. A single mutex guards the map and the
// invalidation generation.
type Cache[V any] struct {
	mu     sync.Mutex
	items  map[string]entry[V]
	gen    uint64
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

func New[V any](ttl time.Duration, logger *zap.Logger) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache[V]{
		items:  make(map[string]entry[V]),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Get returns the value for key. Expired entries are evicted and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	e, ok := c.items[key]
	if ok && !c.now().Before(e.expires) {
		delete(c.items, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", zap.String("key", key))
	return e.value, true
}

// Set stores value under key. A non-positive ttl uses the cache default.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expires: c.now().Add(ttl)}
	c.mu.Unlock()
	c.logger.Debug("cache set", zap.String("key", key), zap.Duration("ttl", ttl))
}

// Generation changes on every Delete, DeletePattern and Clear.
func (c *Cache[V]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfGeneration stores value only if no invalidation happened since gen was
// read. A value computed before a concurrent invalidation is dropped.
func (c *Cache[V]) SetIfGeneration(key string, value V, ttl time.Duration, gen uint64) bool {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("cache set skipped after invalidation", zap.String("key", key))
		return false
	}
	c.items[key] = entry[V]{value: value, expires: c.now().Add(ttl)}
	c.mu.Unlock()
	c.logger.Debug("cache set", zap.String("key", key), zap.Duration("ttl", ttl))
	return true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.gen++
	c.mu.Unlock()
}

// DeletePattern removes every key matching the glob pattern (path.Match syntax)
// and returns the number of removed entries.
func (c *Cache[V]) DeletePattern(pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("cache pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	c.gen++
	removed := 0
	for key := range c.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.items, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.logger.Debug("cache pattern deleted", zap.String("pattern", pattern), zap.Int("removed", removed))
	return removed, nil
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry[V])
	c.gen++
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.Len(),
	}
}
