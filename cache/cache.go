// Package cache provides a bounded in-memory cache with per-entry TTL and
// stale reads. Entries past their TTL are hidden from Get but remain
// available to GetStale until evicted, so callers can fall back to
// last-known-good data when a fresh fetch fails.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/eringen/gitpress/clock"
)

type entry[V any] struct {
	value  V
	expiry time.Time
	seq    uint64
}

// Cache is a string-keyed cache bounded by entry count. When a new key is
// inserted at capacity, the oldest-inserted entry is evicted (insertion
// order, not access order). Expiry is checked lazily on access.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	order      []string
	seqs       []uint64
	nextSeq    uint64
	maxEntries int
	clock      clock.Clock
}

// New creates a Cache holding at most maxEntries entries. A nil clock means
// the real clock.
func New[V any](maxEntries int, clk clock.Clock) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Cache[V]{
		entries:    make(map[string]*entry[V]),
		maxEntries: maxEntries,
		clock:      clk,
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(e.expiry) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetStale returns the value for key regardless of expiry.
func (c *Cache[V]) GetStale(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. Re-setting an existing key counts as a
// fresh insertion for eviction order.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	if _, ok := c.entries[key]; !ok {
		for len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
	}
	c.entries[key] = &entry[V]{
		value:  value,
		expiry: c.clock.Now().Add(ttl),
		seq:    c.nextSeq,
	}
	c.order = append(c.order, key)
	c.seqs = append(c.seqs, c.nextSeq)
	c.compact()
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeletePrefix removes every key starting with prefix.
func (c *Cache[V]) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest drops the oldest live insertion. The order queue may hold
// records for keys that were since deleted or re-set; those are skipped.
func (c *Cache[V]) evictOldest() {
	for len(c.order) > 0 {
		key, seq := c.order[0], c.seqs[0]
		c.order, c.seqs = c.order[1:], c.seqs[1:]
		if e, ok := c.entries[key]; ok && e.seq == seq {
			delete(c.entries, key)
			return
		}
	}
}

// compact drops dead queue records once they dominate the queue.
func (c *Cache[V]) compact() {
	if len(c.order) <= 2*c.maxEntries+16 {
		return
	}
	order := make([]string, 0, len(c.entries))
	seqs := make([]uint64, 0, len(c.entries))
	for i, key := range c.order {
		if e, ok := c.entries[key]; ok && e.seq == c.seqs[i] {
			order = append(order, key)
			seqs = append(seqs, c.seqs[i])
		}
	}
	c.order, c.seqs = order, seqs
}
