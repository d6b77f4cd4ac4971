package engine

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// DefaultCacheSize bounds the evaluation cache when no capacity is given.
const DefaultCacheSize = 10000

// ResultCache is a bounded fingerprint -> EvaluationResult map with
// approximate LRU replacement: recency is tracked by insertion order and the
// oldest entry is evicted on overflow. Safe for concurrent use; the
// recommended deployment is one private cache per chain, with a single shared
// cache as a memory-constrained fallback.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	key    string
	result *EvaluationResult
}

// NewResultCache creates a cache bounded to capacity entries.
func NewResultCache(capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &ResultCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached result for the fingerprint and records the hit or
// miss.
func (c *ResultCache) Get(key string) (*EvaluationResult, bool) {
	c.mu.Lock()
	elem, ok := c.entries[key]
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return elem.Value.(*cacheEntry).result, true
}

// Put inserts a result, evicting the oldest entry once capacity is exceeded.
func (c *ResultCache) Put(key string, result *EvaluationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).result = result
		return
	}

	elem := c.order.PushBack(&cacheEntry{key: key, result: result})
	c.entries[key] = elem

	for len(c.entries) > c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Hits returns the cache hit counter.
func (c *ResultCache) Hits() int64 { return c.hits.Load() }

// Misses returns the cache miss counter.
func (c *ResultCache) Misses() int64 { return c.misses.Load() }

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (c *ResultCache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
