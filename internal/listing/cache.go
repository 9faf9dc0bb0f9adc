package listing

import (
	"sync"
	"time"
)

// memoryCache is a process-local key-value store with sliding and
// absolute expiration. An entry's sliding deadline is pushed forward on
// every hit, but the absolute deadline fixed at insertion wins
// regardless of traffic.
type memoryCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	sliding  time.Duration
	absolute time.Duration
	now      func() time.Time
}

type cacheEntry struct {
	value      any
	slideUntil time.Time
	hardUntil  time.Time
}

func newMemoryCache(sliding, absolute time.Duration) *memoryCache {
	return &memoryCache{
		entries:  make(map[string]*cacheEntry),
		sliding:  sliding,
		absolute: absolute,
		now:      time.Now,
	}
}

func (c *memoryCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := c.now()
	if now.After(entry.hardUntil) || now.After(entry.slideUntil) {
		delete(c.entries, key)
		return nil, false
	}
	entry.slideUntil = now.Add(c.sliding)
	if entry.slideUntil.After(entry.hardUntil) {
		entry.slideUntil = entry.hardUntil
	}
	return entry.value, true
}

func (c *memoryCache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[key] = &cacheEntry{
		value:      value,
		slideUntil: now.Add(c.sliding),
		hardUntil:  now.Add(c.absolute),
	}
	// Opportunistic sweep keeps the map from accumulating dead entries
	// between hits.
	for k, e := range c.entries {
		if now.After(e.hardUntil) {
			delete(c.entries, k)
		}
	}
}
