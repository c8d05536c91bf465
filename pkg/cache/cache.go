// Package cache is a bounded, time-expiring store for remote operation
// results, keyed by a normalized request fingerprint and consulted before a
// new request is issued.
package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries bounds the store; the oldest entries are evicted first.
const DefaultMaxEntries = 512

type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

// Cache stores fetch results by fingerprint. For a fixed fingerprint at most
// one entry exists; insertion always overwrites.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	group      singleflight.Group
}

// New creates a cache bounded to maxEntries (<=0 uses DefaultMaxEntries).
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
	}
}

// Get returns the cached value for fingerprint if present and fresh.
func (c *Cache) Get(fingerprint string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, fingerprint)
		return nil, false
	}
	return e.value, true
}

// Put stores value under fingerprint with a fresh timestamp, overwriting any
// previous entry.
func (c *Cache) Put(fingerprint string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = entry{value: value, storedAt: time.Now(), ttl: ttl}
	c.evictLocked()
}

// GetOrFetch returns the cached value on a hit within TTL; on miss or expiry
// it calls fetch, stores the result, and returns it. Concurrent calls with
// the same fingerprint share a single in-flight fetch.
func (c *Cache) GetOrFetch(ctx context.Context, fingerprint string, ttl time.Duration, fetch func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(fingerprint); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		// A rival caller may have populated the entry while we waited
		// for the flight slot.
		if v, ok := c.Get(fingerprint); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(fingerprint, v, ttl)
		return v, nil
	})
	return v, err
}

// Invalidate removes the entry with the exact fingerprint.
func (c *Cache) Invalidate(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fingerprint)
}

// InvalidatePrefix removes every entry whose fingerprint starts with prefix,
// e.g. all cached results for a collection after a schema change.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries, then the oldest, until under the bound.
func (c *Cache) evictLocked() {
	if len(c.entries) <= c.maxEntries {
		return
	}
	now := time.Now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
	over := len(c.entries) - c.maxEntries
	if over <= 0 {
		return
	}
	byAge := make([]string, 0, len(c.entries))
	for key := range c.entries {
		byAge = append(byAge, key)
	}
	sort.Slice(byAge, func(i, j int) bool {
		return c.entries[byAge[i]].storedAt.Before(c.entries[byAge[j]].storedAt)
	})
	for _, key := range byAge[:over] {
		delete(c.entries, key)
	}
}
