// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// cache.go provides the in-process tree cache. It memoizes derived views
// (whole tree, children lists, ancestor paths, node metadata) for a bounded
// time. Expired entries are dropped when read; an optional janitor sweeps
// them periodically to bound memory. There is no LRU: entries leave only on
// expiry, Delete, or Clear.
package hierarchy

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long a cached tree view stays valid.
const DefaultTTL = 5 * time.Minute

// CacheObserver receives cache hit/miss/eviction events. The metrics
// package implements it with Prometheus counters.
type CacheObserver interface {
	CacheHit(domain string)
	CacheMiss(domain string)
	CacheEvicted(domain string, n int)
}

type cacheEntry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return !now.Before(e.insertedAt.Add(e.ttl))
}

// Cache is a concurrency-safe expiring key/value map. Every Clear starts a
// new generation; SetIfGeneration refuses values computed in an older one.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry
	gen      uint64
	ttl      time.Duration
	domain   string
	now      func() time.Time
	observer CacheObserver
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithObserver attaches a hit/miss observer.
func WithObserver(o CacheObserver) CacheOption {
	return func(c *Cache) { c.observer = o }
}

// NewCache creates an empty cache for the named domain. A zero ttl falls
// back to DefaultTTL.
func NewCache(domain string, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		domain:  domain,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the default time to live for new entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached value for key. The second value is false when the
// key is absent or its entry has expired; an expired entry is also removed.
func (c *Cache) Get(key string) (any, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.miss()
		return nil, false
	}

	if e.expired(now) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if cur, ok := c.entries[key]; ok && cur.expired(now) {
			delete(c.entries, key)
			c.evicted(1)
		}
		c.mu.Unlock()
		c.miss()
		return nil, false
	}

	if c.observer != nil {
		c.observer.CacheHit(c.domain)
	}
	slog.Debug("tree cache hit", "domain", c.domain, "key", key)
	return e.value, true
}

// Set stores value under key with the default TTL, replacing any entry.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, insertedAt: c.now(), ttl: ttl}
}

// Generation returns the current generation. Read it before loading from
// the store and pass it to SetIfGeneration.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// SetIfGeneration stores value with the default TTL unless the cache was
// cleared since gen was read. It reports whether the value was stored.
func (c *Cache) SetIfGeneration(key string, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		slog.Debug("tree cache set skipped, cleared since load", "domain", c.domain, "key", key)
		return false
	}
	c.entries[key] = cacheEntry{value: value, insertedAt: c.now(), ttl: c.ttl}
	return true
}

// Delete removes key. Missing keys are ignored.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	c.gen++
	slog.Debug("tree cache cleared", "domain", c.domain, "entries", n)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	c.evicted(n)
	return n
}

// RunJanitor sweeps the cache every interval until ctx is cancelled.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				slog.Debug("tree cache swept", "domain", c.domain, "expired", n)
			}
		}
	}
}

func (c *Cache) miss() {
	if c.observer != nil {
		c.observer.CacheMiss(c.domain)
	}
}

func (c *Cache) evicted(n int) {
	if n > 0 && c.observer != nil {
		c.observer.CacheEvicted(c.domain, n)
	}
}
