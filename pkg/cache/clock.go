package cache

import (
	"sync"
	"sync/atomic"
)

type clockSlot[K comparable, V any] struct {
	key   K
	value V
	// referenced is set on every hit and cleared as the hand passes
	referenced atomic.Bool
}

// Clock is a second-chance cache. Hits only set a reference bit under a
// shared lock, so concurrent readers never wait for each other. On insert
// into a full cache the hand sweeps the slots, clearing reference bits,
// and evicts the first slot whose bit is already clear.
type Clock[K comparable, V any] struct {
	counters
	mu       sync.RWMutex
	index    map[K]int
	slots    []*clockSlot[K, V]
	hand     int
	capacity int
}

// NewClock creates a Clock cache holding at most capacity entries
func NewClock[K comparable, V any](capacity int) *Clock[K, V] {
	return &Clock[K, V]{
		index:    make(map[K]int, capacity),
		slots:    make([]*clockSlot[K, V], 0, capacity),
		capacity: capacity,
	}
}

func (c *Clock[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[key]
	c.record(ok)
	if !ok {
		var zero V
		return zero, false
	}
	slot := c.slots[i]
	slot.referenced.Store(true)
	return slot.value, true
}

func (c *Clock[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inserts.Add(1)

	if i, ok := c.index[key]; ok {
		c.slots[i].value = value
		c.slots[i].referenced.Store(true)
		return
	}

	if len(c.slots) < c.capacity {
		c.index[key] = len(c.slots)
		c.slots = append(c.slots, &clockSlot[K, V]{key: key, value: value})
		return
	}

	for {
		victim := c.slots[c.hand]
		if victim.referenced.Swap(false) {
			c.hand = (c.hand + 1) % c.capacity
			continue
		}

		delete(c.index, victim.key)
		c.evictions.Add(1)
		c.slots[c.hand] = &clockSlot[K, V]{key: key, value: value}
		c.index[key] = c.hand
		c.hand = (c.hand + 1) % c.capacity
		return
	}
}

func (c *Clock[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}

func (c *Clock[K, V]) Cap() int {
	return c.capacity
}

func (c *Clock[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[K]int, c.capacity)
	c.slots = c.slots[:0]
	c.hand = 0
}

func (c *Clock[K, V]) Stats() Stats {
	return c.snapshot(c.Len(), c.capacity)
}
