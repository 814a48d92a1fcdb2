package dataloader

import (
	"container/list"
	"fmt"
	"sync"
)

// Cache is an LRU cache for preprocessed image tensors, keyed by image path.
// It is safe for concurrent use and can be shared between loaders whose
// partitions use the same deterministic transform (validation and test).
// Augmented training samples must not be cached.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]float32
	lru     *list.List
	lruMap  map[string]*list.Element
	maxSize int

	hits   int64
	misses int64
}

// NewCache creates a cache holding at most maxSize preprocessed images.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{
		entries: make(map[string][]float32),
		lru:     list.New(),
		lruMap:  make(map[string]*list.Element),
		maxSize: maxSize,
	}
}

// Get retrieves a preprocessed image from the cache.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, exists := c.entries[key]; exists {
		if elem, ok := c.lruMap[key]; ok {
			c.lru.MoveToFront(elem)
		}
		c.hits++
		return data, true
	}

	c.misses++
	return nil, false
}

// Put adds a preprocessed image to the cache, evicting the least recently
// used entries when full.
func (c *Cache) Put(key string, data []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		if elem, ok := c.lruMap[key]; ok {
			c.lru.MoveToFront(elem)
		}
		return
	}

	elem := c.lru.PushFront(key)
	c.lruMap[key] = elem
	c.entries[key] = data

	for len(c.entries) > c.maxSize && c.lru.Len() > 0 {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		oldKey := oldest.Value.(string)
		c.lru.Remove(oldest)
		delete(c.lruMap, oldKey)
		delete(c.entries, oldKey)
	}
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total) * 100
	}
	return stats
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d items, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}
