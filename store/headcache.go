package store

import (
	"sync"

	"github.com/herodb/herodb/core"
)

// headCache memoizes the object last seen at a path on master's tip, the
// only branch and snapshot it ever accelerates: any read pinned to a
// commit_sha, or any read against a non-master branch, bypasses it
// entirely. Entries are keyed by "<store-id>/<path>" so a single cache can
// be shared process-wide by the registry without store ids colliding.
type headCache struct {
	mu      sync.Mutex
	entries map[string]core.Object
}

func newHeadCache() *headCache {
	return &headCache{entries: make(map[string]core.Object)}
}

func headCacheKey(storeID, path string) string {
	return storeID + "/" + path
}

func (c *headCache) get(storeID, path string) (core.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.entries[headCacheKey(storeID, path)]
	return obj, ok
}

func (c *headCache) put(storeID, path string, obj core.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[headCacheKey(storeID, path)] = obj
}

// evict removes path, every ancestor of path up to and including the root,
// and every entry below path. Traversals cache tree nodes as well as
// leaves, so a write at path makes each ancestor's cached tree stale (its
// hash changes) and any cached entry under a replaced sub-tree stale too.
func (c *headCache) evict(storeID, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := core.SplitPath(path)
	for i := 0; i <= len(parts); i++ {
		delete(c.entries, headCacheKey(storeID, core.JoinPath(parts[:i]...)))
	}
	delete(c.entries, headCacheKey(storeID, path))
	prefix := headCacheKey(storeID, core.JoinPath(parts...)) + "/"
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}

// evictAll drops every entry belonging to storeID, used after a merge into
// master since a merge can touch an unbounded set of paths at once.
func (c *headCache) evictAll(storeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := storeID + "/"
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}
