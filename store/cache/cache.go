// Package cache implements the query cache: an operation-level memo keyed
// by (operation, arguments), only ever consulted or populated when the
// caller pins a read to an explicit commit_sha. Results are immutable once
// stored, since a pinned transaction's contents never change.
package cache

import "time"

// nullValue marks a cached "not found" result so a miss that was already
// looked up doesn't re-walk the tree on every subsequent call.
var nullValue = struct{}{}

// Backend is the pluggable storage a QueryCache sits on top of: an
// in-process LRU, or an external key/value service reached over the
// network.
type Backend interface {
	Get(key string) (value any, ok bool)
	Set(key string, value any, ttl time.Duration)
	Len() int
}

// Stats are the request/hit/miss counters get_stats/reset_stats expose.
type Stats struct {
	Requests int64
	Hits     int64
	Misses   int64
}

// QueryCache memoizes store operations by a caller-supplied key, typically
// built from the operation name and its arguments. TTL is only meaningful
// for an External backend; an LRU backend ignores it.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	stats   Stats
}

// New wraps backend in a QueryCache using ttl as the default for Set.
func New(backend Backend, ttl time.Duration) *QueryCache {
	return &QueryCache{backend: backend, ttl: ttl}
}

// Get looks up key, counting the request. A stored nullValue (a memoized
// not-found) reports ok=true with value=nil.
func (c *QueryCache) Get(key string) (value any, ok bool) {
	c.stats.Requests++
	v, ok := c.backend.Get(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	if v == nullValue {
		return nil, true
	}
	return v, true
}

// SetFound memoizes a successful lookup.
func (c *QueryCache) SetFound(key string, value any) {
	c.backend.Set(key, value, c.ttl)
}

// SetNotFound memoizes that key resolved to nothing, so repeat lookups
// against the same pinned transaction don't re-walk the tree.
func (c *QueryCache) SetNotFound(key string) {
	c.backend.Set(key, nullValue, c.ttl)
}

// Stats returns a snapshot of the request/hit/miss counters.
func (c *QueryCache) Stats() Stats { return c.stats }

// ResetStats zeroes the request/hit/miss counters.
func (c *QueryCache) ResetStats() { c.stats = Stats{} }

// Len reports the number of entries currently held by the backend.
func (c *QueryCache) Len() int { return c.backend.Len() }
