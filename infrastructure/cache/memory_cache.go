// Package cache provides the client-side key/value stores that hold positions
// of synthetic nodes and the sticky layout mode.
package cache

import (
	"context"
	"sync"

	"literature-flow/application/ports"
)

var _ ports.KeyValueCache = (*MemoryCache)(nil)

// DefaultMaxItems bounds a MemoryCache created with a non-positive size
const DefaultMaxItems = 10000

// MemoryCache is an in-process cache. Entries never expire; when full, the
// oldest written entry is evicted.
type MemoryCache struct {
	items    map[string]memoryCacheItem
	maxItems int
	seq      uint64
	mu       sync.RWMutex
}

type memoryCacheItem struct {
	value string
	seq   uint64
}

// NewMemoryCache creates an empty cache holding at most maxItems entries
func NewMemoryCache(maxItems int) *MemoryCache {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &MemoryCache{
		items:    make(map[string]memoryCacheItem),
		maxItems: maxItems,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists {
		return "", false, nil
	}
	return item.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxItems {
		c.evictOldest()
	}
	c.seq++
	c.items[key] = memoryCacheItem{value: value, seq: c.seq}
	return nil
}

// Len returns the number of entries
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest uint64

	for key, item := range c.items {
		if oldestKey == "" || item.seq < oldest {
			oldestKey = key
			oldest = item.seq
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
