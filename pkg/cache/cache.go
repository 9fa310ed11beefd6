// Package cache provides capacity-bounded caches with pluggable eviction
// policies. All implementations are safe for concurrent use.
package cache

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// Policy names an eviction policy
type Policy string

const (
	// PolicyLRU evicts the least recently used entry. Get briefly takes an
	// exclusive lock to update recency.
	PolicyLRU Policy = "lru"
	// PolicyClock approximates LRU with a second-chance sweep. Get only
	// takes a shared lock.
	PolicyClock Policy = "clock"
	// PolicyFIFO evicts the oldest inserted entry. Get only takes a shared
	// lock.
	PolicyFIFO Policy = "fifo"
)

const (
	DefaultPolicy   = PolicyClock
	DefaultCapacity = 200
)

var (
	ErrUnknownPolicy   = errors.New("unknown eviction policy")
	ErrInvalidCapacity = errors.New("cache capacity must be positive")
)

// Cache is a bounded mapping. Len never exceeds Cap: inserting a new key
// into a full cache evicts one resident entry first.
type Cache[K comparable, V any] interface {
	// Get returns the value stored for key
	Get(key K) (V, bool)
	// Put stores value under key, evicting an entry if the cache is full
	Put(key K, value V)
	// Len returns the number of resident entries
	Len() int
	// Cap returns the maximum number of resident entries
	Cap() int
	// Purge removes every entry
	Purge()
	// Stats returns a snapshot of the cache counters
	Stats() Stats
}

// Stats contains counters describing cache effectiveness
type Stats struct {
	Hits      uint64
	Misses    uint64
	Inserts   uint64
	Evictions uint64
	Len       int
	Cap       int
}

// HitRate returns Hits / (Hits + Misses), or 0 before any lookup
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ParsePolicy converts a configuration string into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyLRU, PolicyClock, PolicyFIFO:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// New creates a cache using the named policy
func New[K comparable, V any](policy Policy, capacity int) (Cache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	switch policy {
	case PolicyLRU:
		c, err := NewLRU[K, V](capacity)
		if err != nil {
			return nil, err
		}
		return c, nil
	case PolicyClock:
		return NewClock[K, V](capacity), nil
	case PolicyFIFO:
		return NewFIFO[K, V](capacity), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// counters is embedded by every policy
type counters struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	inserts   atomic.Uint64
	evictions atomic.Uint64
}

func (c *counters) record(found bool) {
	if found {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) snapshot(length, capacity int) Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Inserts:   c.inserts.Load(),
		Evictions: c.evictions.Load(),
		Len:       length,
		Cap:       capacity,
	}
}
