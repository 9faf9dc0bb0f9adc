package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSlidingExpiration(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newMemoryCache(3*time.Second, 20*time.Second)
	c.now = func() time.Time { return clock }

	c.set("k", 42)

	clock = clock.Add(2 * time.Second)
	v, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	// The hit above pushed the sliding deadline forward.
	clock = clock.Add(2 * time.Second)
	_, ok = c.get("k")
	assert.True(t, ok)

	// Four seconds idle exceeds the sliding window.
	clock = clock.Add(4 * time.Second)
	_, ok = c.get("k")
	assert.False(t, ok)
}

func TestCacheAbsoluteCapWinsOverTraffic(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newMemoryCache(3*time.Second, 20*time.Second)
	c.now = func() time.Time { return clock }

	c.set("k", "page")

	// Hammer the entry every 2s; the absolute cap still evicts it.
	for i := 0; i < 10; i++ {
		clock = clock.Add(2 * time.Second)
		c.get("k")
	}
	clock = clock.Add(time.Second)
	_, ok := c.get("k")
	assert.False(t, ok, "entry must die at the absolute cap regardless of hits")
}

func TestCacheDistinctKeys(t *testing.T) {
	c := newMemoryCache(3*time.Second, 20*time.Second)
	c.set("a", 1)
	c.set("b", 2)

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = c.get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = c.get("c")
	assert.False(t, ok)
}

func TestCacheSweepOnSet(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newMemoryCache(3*time.Second, 20*time.Second)
	c.now = func() time.Time { return clock }

	c.set("old", 1)
	clock = clock.Add(30 * time.Second)
	c.set("new", 2)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.NotContains(t, c.entries, "old")
	assert.Contains(t, c.entries, "new")
}
