// Package lru implements a fixed-capacity, thread-safe LRU cache with
// O(1) amortized get/put/evict. All operations serialize under a single
// mutex; the cache sits off the hot path (include-path memoization).
package lru

import (
	"container/list"
	"fmt"
	"sync"
)

type entry[K comparable, V any] struct {
	key K
	val V
}

// Cache is a key→value cache holding at most its capacity, evicting the
// least recently used entry on overflow.
type Cache[K comparable, V any] struct {
	mu  sync.Mutex
	max int
	ll  *list.List // front is most recently used
	idx map[K]*list.Element
}

// New creates a cache. Capacity must be positive.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("lru: capacity must be positive, got %d", capacity)
	}
	return &Cache[K, V]{
		max: capacity,
		ll:  list.New(),
		idx: make(map[K]*list.Element, capacity),
	}, nil
}

// Get returns the value for key, promoting it to most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.idx[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry[K, V]).val, true
	}
	var zero V
	return zero, false
}

// Put stores key→val. An existing key is updated and promoted; at full
// capacity the least recently used entry is evicted first.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.idx[key]; ok {
		el.Value.(*entry[K, V]).val = val
		c.ll.MoveToFront(el)
		return
	}
	if c.ll.Len() >= c.max {
		last := c.ll.Back()
		delete(c.idx, last.Value.(*entry[K, V]).key)
		c.ll.Remove(last)
	}
	c.idx[key] = c.ll.PushFront(&entry[K, V]{key: key, val: val})
}

// Remove drops key from the cache if present.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.idx[key]; ok {
		c.ll.Remove(el)
		delete(c.idx, key)
	}
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Clear empties the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.idx)
}
