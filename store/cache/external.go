package cache

import (
	"sync"
	"time"
)

// DefaultExternalTTL is the expiry an External cache uses when a caller
// doesn't override it: 24 hours.
const DefaultExternalTTL = 24 * time.Hour

// externalEntry pairs a value with its absolute expiry.
type externalEntry struct {
	value   any
	expires time.Time
}

// External is a Backend modeling a networked key/value cache (the pack
// carries no Redis or memcached client, so this is a TTL-aware in-process
// stand-in sharing the same interface an actual client would implement;
// swapping in a real client means writing a Backend, not changing
// QueryCache). Entries past their expiry are treated as absent and swept
// lazily on access.
type External struct {
	mu      sync.Mutex
	entries map[string]externalEntry
}

// NewExternal creates an empty External backend.
func NewExternal() *External {
	return &External{entries: make(map[string]externalEntry)}
}

func (c *External) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *External) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = DefaultExternalTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = externalEntry{value: value, expires: time.Now().Add(ttl)}
}

func (c *External) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
