// Package cache holds fetched calendar months in memory with a freshness
// window and per-key request generations.
package cache

import (
	"sync"
	"time"

	"entcal/internal/metrics"
)

// State is the freshness of a cached value.
type State int

const (
	Miss State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// Options configures a Cache.
type Options struct {
	// TTL is how long a value is served without triggering a refresh.
	// Stale values are still returned until replaced.
	TTL time.Duration
	// MaxEntries bounds the number of cached keys; 0 means unbounded.
	// The least recently fetched key is evicted first.
	MaxEntries int
	// Now overrides the clock in tests.
	Now func() time.Time
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
	hasValue  bool

	// issued is the newest generation handed out by Begin for this key.
	issued uint64
	// pending counts generations begun but not yet committed or released.
	pending int
}

// idle reports whether the entry holds nothing worth keeping.
func (e *entry[V]) idle() bool {
	return !e.hasValue && e.pending == 0
}

// Cache is safe for concurrent use. Writers must obtain a generation with
// Begin and hand it back exactly once, to Commit on success or Release on
// failure; only the newest generation is stored. Keys without a value or
// a pending generation are dropped, so MaxEntries bounds memory as well as
// Len.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	seq     uint64
	entries map[K]*entry[V]
}

// New constructs a Cache. A zero TTL means five minutes.
func New[K comparable, V any](opts Options) *Cache[K, V] {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[K, V]{
		ttl:     opts.TTL,
		max:     opts.MaxEntries,
		now:     opts.Now,
		entries: make(map[K]*entry[V]),
	}
}

// TTL returns the configured freshness window.
func (c *Cache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached value for k with its fetch time and freshness.
func (c *Cache[K, V]) Get(k K) (V, time.Time, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[k]
	if !ok || !e.hasValue {
		metrics.CacheLookups.WithLabelValues(Miss.String()).Inc()
		return zero, time.Time{}, Miss
	}
	st := Fresh
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		st = Stale
	}
	metrics.CacheLookups.WithLabelValues(st.String()).Inc()
	return e.value, e.fetchedAt, st
}

// Begin issues the next generation for k. Any earlier generation still in
// flight is superseded. Generations are unique across the cache, so a
// dropped and re-created key never reissues an old one.
func (c *Cache[K, V]) Begin(k K) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		e = &entry[V]{}
		c.entries[k] = e
	}
	c.seq++
	e.issued = c.seq
	e.pending++
	return e.issued
}

// Commit stores v for k if gen is the newest generation issued for k and
// reports whether it did. gen is settled either way.
func (c *Cache[K, V]) Commit(k K, gen uint64, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		metrics.CommitsDropped.Inc()
		return false
	}
	c.settleLocked(e)
	if gen != e.issued {
		metrics.CommitsDropped.Inc()
		c.dropIdleLocked(k, e)
		return false
	}
	e.value = v
	e.fetchedAt = c.now()
	e.hasValue = true
	c.evictLocked(k)
	return true
}

// Release settles gen without storing anything, for fetches that failed.
func (c *Cache[K, V]) Release(k K, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return
	}
	c.settleLocked(e)
	c.dropIdleLocked(k, e)
}

// Invalidate drops the value for k and supersedes any in-flight
// generation, so a fetch that started earlier cannot repopulate it.
func (c *Cache[K, V]) Invalidate(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return
	}
	c.clearLocked(k, e)
}

// Purge removes every entry.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		c.clearLocked(k, e)
	}
}

// Len returns the number of keys holding a value.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked()
}

func (c *Cache[K, V]) settleLocked(e *entry[V]) {
	if e.pending > 0 {
		e.pending--
	}
}

// clearLocked empties e and supersedes its pending generations.
func (c *Cache[K, V]) clearLocked(k K, e *entry[V]) {
	var zero V
	e.value = zero
	e.hasValue = false
	e.fetchedAt = time.Time{}
	c.seq++
	e.issued = c.seq
	c.dropIdleLocked(k, e)
}

func (c *Cache[K, V]) dropIdleLocked(k K, e *entry[V]) {
	if e.idle() {
		delete(c.entries, k)
	}
}

// evictLocked drops the oldest values until the size limit holds. keep is
// never evicted.
func (c *Cache[K, V]) evictLocked(keep K) {
	if c.max <= 0 {
		return
	}
	for c.lenLocked() > c.max {
		var (
			oldestKey K
			oldestAt  time.Time
			found     bool
		)
		for k, e := range c.entries {
			if k == keep || !e.hasValue {
				continue
			}
			if !found || e.fetchedAt.Before(oldestAt) {
				oldestKey, oldestAt, found = k, e.fetchedAt, true
			}
		}
		if !found {
			return
		}
		e := c.entries[oldestKey]
		var zero V
		e.value = zero
		e.hasValue = false
		e.fetchedAt = time.Time{}
		c.dropIdleLocked(oldestKey, e)
		metrics.CacheEvictions.Inc()
	}
}

func (c *Cache[K, V]) lenLocked() int {
	n := 0
	for _, e := range c.entries {
		if e.hasValue {
			n++
		}
	}
	return n
}
