package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a strict least-recently-used cache
type LRU[K comparable, V any] struct {
	counters
	entries  *lru.Cache[K, V]
	capacity int
}

// NewLRU creates an LRU cache holding at most capacity entries
func NewLRU[K comparable, V any](capacity int) (*LRU[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	entries, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{entries: entries, capacity: capacity}, nil
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries.Get(key)
	c.record(ok)
	return v, ok
}

func (c *LRU[K, V]) Put(key K, value V) {
	if c.entries.Add(key, value) {
		c.evictions.Add(1)
	}
	c.inserts.Add(1)
}

func (c *LRU[K, V]) Len() int {
	return c.entries.Len()
}

func (c *LRU[K, V]) Cap() int {
	return c.capacity
}

func (c *LRU[K, V]) Purge() {
	c.entries.Purge()
}

func (c *LRU[K, V]) Stats() Stats {
	return c.snapshot(c.Len(), c.capacity)
}
