// Package statecache holds the last known value of every observed entity
// together with its freshness.
//
// The cache is the single synchronization point between the poller, the
// event stream, the renderer and the dispatcher: writers record values and
// failures, readers take atomic per-entity snapshots. A value survives
// failed refresh cycles; it is only marked stale once consecutive failures
// reach the configured threshold, and a single success clears the mark.
package statecache

import (
	"sync"
	"time"
)

// Entry is an atomic snapshot of one entity.
type Entry struct {
	// Value is the last successfully fetched raw state string. Empty until
	// the first successful fetch.
	Value string

	// Known reports whether a value has ever been fetched.
	Known bool

	// Failures is the count of consecutive failed refresh attempts since
	// the last success.
	Failures int

	// Stale reports whether Failures has reached the staleness threshold.
	Stale bool

	// UpdatedAt is the time of the last successful fetch.
	UpdatedAt time.Time
}

type Cache struct {
	mu        sync.RWMutex
	threshold int
	now       func() time.Time
	entries   map[string]*Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache that marks entries stale after threshold consecutive
// failures. A threshold below 1 is treated as 1.
func New(threshold int, opts ...Option) *Cache {
	if threshold < 1 {
		threshold = 1
	}
	c := &Cache{
		threshold: threshold,
		now:       time.Now,
		entries:   make(map[string]*Entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Seed creates a never-updated entry for each id that does not already have
// one, so every entity referenced by the layout is tracked from startup.
func (c *Cache) Seed(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if c.entries[id] == nil {
			c.entries[id] = &Entry{}
		}
	}
}

// Set records a successful fetch, resetting the failure count and clearing
// staleness. changed reports whether the stored value changed, which drives
// change-only redraws. recovered reports whether the entry was stale and
// this update cleared it, regardless of which path delivered the value.
func (c *Cache) Set(id, value string) (changed, recovered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[id]
	if e == nil {
		e = &Entry{}
		c.entries[id] = e
	}
	changed = !e.Known || e.Value != value || e.Stale
	recovered = e.Stale
	e.Value = value
	e.Known = true
	e.Failures = 0
	e.Stale = false
	e.UpdatedAt = c.now()
	return changed, recovered
}

// Fail records a failed refresh attempt. The last known value is retained.
// It reports whether the entry just crossed into staleness.
func (c *Cache) Fail(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[id]
	if e == nil {
		e = &Entry{}
		c.entries[id] = e
	}
	e.Failures++
	if !e.Stale && e.Failures >= c.threshold {
		e.Stale = true
		return true
	}
	return false
}

// Get returns an atomic snapshot of one entity. The zero Entry is returned
// for entities the cache has never seen.
func (c *Cache) Get(id string) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e := c.entries[id]; e != nil {
		return *e
	}
	return Entry{}
}

// Snapshot returns atomic copies of every tracked entity.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Entry, len(c.entries))
	for id, e := range c.entries {
		out[id] = *e
	}
	return out
}
