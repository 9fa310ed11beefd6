package cache

import "sync"

// FIFO evicts entries in insertion order. Re-putting a resident key
// replaces its value without refreshing its position.
type FIFO[K comparable, V any] struct {
	counters
	mu       sync.RWMutex
	entries  map[K]V
	ring     []K
	next     int
	capacity int
}

// NewFIFO creates a FIFO cache holding at most capacity entries
func NewFIFO[K comparable, V any](capacity int) *FIFO[K, V] {
	return &FIFO[K, V]{
		entries:  make(map[K]V, capacity),
		ring:     make([]K, 0, capacity),
		capacity: capacity,
	}
}

func (c *FIFO[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[key]
	c.record(ok)
	return v, ok
}

func (c *FIFO[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inserts.Add(1)

	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}

	if len(c.ring) < c.capacity {
		c.ring = append(c.ring, key)
	} else {
		delete(c.entries, c.ring[c.next])
		c.evictions.Add(1)
		c.ring[c.next] = key
		c.next = (c.next + 1) % c.capacity
	}
	c.entries[key] = value
}

func (c *FIFO[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *FIFO[K, V]) Cap() int {
	return c.capacity
}

func (c *FIFO[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]V, c.capacity)
	c.ring = c.ring[:0]
	c.next = 0
}

func (c *FIFO[K, V]) Stats() Stats {
	return c.snapshot(c.Len(), c.capacity)
}
