// Package cache implements the short-TTL read cache that sits in front of
// repository reads for frequently polled aggregates (lists, statistics).
//
// WHY A CACHE AT ALL?
// The dashboard and table views poll their data sources far more often than
// the data actually changes. Without a cache every poll costs a SQL scan;
// with a 1–2 second TTL most polls are answered from memory and the database
// only sees one read per window.
//
// WHY NOT SERVE STALE DATA?
// TTL expiry alone is not enough: a write inside the TTL window would leave
// the next read serving a snapshot from before the write. Every mutating
// workflow operation therefore invalidates the keys whose underlying query
// result it could have changed. Missing an invalidation is a correctness bug;
// over-invalidating only costs one extra query.
//
// The cache is advisory only: a miss has no error state, the caller falls
// through to the repository.
package cache

import (
	"sync"
	"time"
)

// Key identifies one cached snapshot. Each entity type gets one key — the
// cache stores whole query results, not per-row entries.
type Key string

const (
	KeyStudents     Key = "students"
	KeyBooks        Key = "books"
	KeyTransactions Key = "transactions"
	KeyStatistics   Key = "statistics"
)

// fallbackTTL applies to keys constructed without a configured default.
const fallbackTTL = 500 * time.Millisecond

// Defaults returns the per-key default TTLs. The values reflect update
// frequency, not semantic necessity: transactions churn fastest, so their
// snapshot goes stale soonest. Any TTL above zero and below the time between
// conflicting writes is correct.
func Defaults() map[Key]time.Duration {
	return map[Key]time.Duration{
		KeyStudents:     2 * time.Second,
		KeyBooks:        2 * time.Second,
		KeyTransactions: 1 * time.Second,
		KeyStatistics:   2 * time.Second,
	}
}

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is an in-memory expiring map with per-key TTLs and explicit
// invalidation. It is an explicitly constructed dependency — created once in
// the composition root and injected into every service — never a package
// global, so tests can build isolated instances.
//
// All methods are safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]entry
	defaults map[Key]time.Duration // TTLs as configured, never mutated
	ttls     map[Key]time.Duration // effective TTLs, may hold an override
	reverts  map[Key]*time.Timer   // pending auto-revert timers
	now      func() time.Time      // swappable in tests
}

// New creates a Cache with the given per-key default TTLs.
// Pass Defaults() for the standard configuration.
func New(defaults map[Key]time.Duration) *Cache {
	d := make(map[Key]time.Duration, len(defaults))
	t := make(map[Key]time.Duration, len(defaults))
	for k, ttl := range defaults {
		d[k] = ttl
		t[k] = ttl
	}
	return &Cache{
		entries:  make(map[Key]entry),
		defaults: d,
		ttls:     t,
		reverts:  make(map[Key]*time.Timer),
		now:      time.Now,
	}
}

// Get returns the cached value for key if one was stored within the key's
// effective TTL. The second return value reports whether the value is
// usable — on false the caller must fall through to the repository.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttlLocked(key) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key and resets its timer. The key keeps its
// current effective TTL (default, or an override still in force).
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
}

// SetTTL stores value under key with a temporary TTL override. The override
// widens or narrows the key's TTL for the override window only: once the
// window elapses the key reverts to its default TTL automatically. A second
// override replaces a pending revert rather than stacking on it.
func (c *Cache) SetTTL(key Key, value any, override time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, storedAt: c.now()}
	c.ttls[key] = override

	if t, ok := c.reverts[key]; ok {
		t.Stop()
	}
	c.reverts[key] = time.AfterFunc(override, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.ttls[key] = c.defaultLocked(key)
		delete(c.reverts, key)
	})
}

// Invalidate forces subsequent Gets on each key to miss until the next Set,
// independent of TTL expiry. Called by every mutating workflow operation
// with the set of keys its write could have affected.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// InvalidateAll drops every cached snapshot.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Close stops any pending TTL-revert timers. Call on shutdown.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, t := range c.reverts {
		t.Stop()
		delete(c.reverts, k)
	}
}

// KeyStats describes one key's cache state, for the debug endpoint.
type KeyStats struct {
	Cached bool          `json:"cached"`
	Valid  bool          `json:"valid"`
	Age    time.Duration `json:"age"`
	TTL    time.Duration `json:"ttl"`
}

// Stats reports the current state of every configured key.
func (c *Cache) Stats() map[Key]KeyStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[Key]KeyStats, len(c.defaults))
	for k := range c.defaults {
		s := KeyStats{TTL: c.ttlLocked(k)}
		if e, ok := c.entries[k]; ok {
			s.Cached = true
			s.Age = c.now().Sub(e.storedAt)
			s.Valid = s.Age < s.TTL
		}
		out[k] = s
	}
	return out
}

func (c *Cache) ttlLocked(key Key) time.Duration {
	if ttl, ok := c.ttls[key]; ok {
		return ttl
	}
	return fallbackTTL
}

func (c *Cache) defaultLocked(key Key) time.Duration {
	if ttl, ok := c.defaults[key]; ok {
		return ttl
	}
	return fallbackTTL
}

// GetTyped is a type-safe wrapper around Get. The cache stores snapshots as
// `any`; this generic helper gives callers back their concrete type without
// sprinkling type assertions through the services:
//
//	stats, ok := cache.GetTyped[*model.Statistics](c, cache.KeyStatistics)
//
// A cached value of the wrong type counts as a miss rather than a panic.
func GetTyped[T any](c *Cache, key Key) (T, bool) {
	v, ok := c.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}
