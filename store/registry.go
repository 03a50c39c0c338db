package store

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/herodb/herodb/core"
	"github.com/herodb/herodb/objectstore"
	"github.com/herodb/herodb/store/cache"
)

// Registry lazily opens and memoizes one Store per store id, so repeated
// lookups for the same id return the same Store (and therefore share its
// head cache) instead of re-opening the repository each time. It also owns
// the single process-wide query cache every Store it opens shares, matching
// the server's one module-level cache instance rather than one per store.
type Registry struct {
	root     string
	identity core.Identity
	queries  *cache.QueryCache

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates a registry rooted at root, the directory under which
// each store lives at root/<id>.git.
func NewRegistry(root string, identity core.Identity) *Registry {
	return &Registry{
		root:     root,
		identity: identity,
		queries:  cache.New(cache.NewLRU(cache.DefaultLRUCapacity), 0),
		stores:   make(map[string]*Store),
	}
}

// QueryCache returns the process-wide query cache shared by every store
// this registry opens, backing the store-less /cache_stats and
// /reset_cache_stats routes.
func (r *Registry) QueryCache() *cache.QueryCache { return r.queries }

// Get returns the Store for id, opening (and if necessary creating) its
// backing repository on first use.
func (r *Registry) Get(id string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[id]; ok {
		return s, nil
	}

	dir := filepath.Join(r.root, id+".git")
	persist, err := objectstore.Open(dir, r.identity)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", id, err)
	}

	s := Open(id, persist, r.identity, r.queries)
	r.stores[id] = s
	return s, nil
}

// Ids lists every store id currently memoized by this registry. It does
// not scan the filesystem for stores that have never been requested.
func (r *Registry) Ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	return ids
}

// Each applies fn to every memoized Store, used by the GC worker to walk
// every open store on its periodic sweep.
func (r *Registry) Each(fn func(*Store)) {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()

	for _, s := range stores {
		fn(s)
	}
}
