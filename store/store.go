// Package store implements the hierarchical key/value contract on top of
// objectstore: one Store per git-object-backed repository, with a head
// cache accelerating master reads and a query cache memoizing reads pinned
// to a transaction.
package store

import (
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"

	"github.com/herodb/herodb/core"
	"github.com/herodb/herodb/objectstore"
	"github.com/herodb/herodb/store/cache"
)

// Store is a single hierarchical key/value store backed by one bare git
// repository. It is safe for concurrent use.
type Store struct {
	ID         string
	persist    *objectstore.Persistence
	identity   core.Identity
	serializer core.Serializer
	heads      *headCache
	queries    *cache.QueryCache
}

// Open wraps an already-opened Persistence as a Store. id identifies the
// store for head-cache and query-cache key scoping. queries is the
// process-wide query cache (one instance shared by every store a registry
// opens, per spec §5) rather than a cache of the store's own.
func Open(id string, persist *objectstore.Persistence, identity core.Identity, queries *cache.QueryCache) *Store {
	return &Store{
		ID:         id,
		persist:    persist,
		identity:   identity,
		serializer: core.JSONSerializer{},
		heads:      newHeadCache(),
		queries:    queries,
	}
}

// QueryCache exposes the store's query cache so callers (and tests) can
// inspect stats directly; httpapi's /cache_stats route reads the registry's
// shared instance instead, since that route carries no store segment.
func (s *Store) QueryCache() *cache.QueryCache { return s.queries }

// GetOptions parameterizes Get.
type GetOptions struct {
	Branch    string // defaults to master
	CommitSHA string // pins the read to a transaction; enables the query cache
	Shallow   bool   // when key names a tree, preview just two levels of children instead of fully materializing it
}

func (o GetOptions) branch() string {
	if o.Branch == "" {
		return objectstore.MasterBranch
	}
	return o.Branch
}

// Get resolves the object at key in the designated snapshot. A blob
// decodes to its value; a tree materializes as a mapping of its contents
// (bounded to two levels of children when Shallow is set), unwrapped so
// the result is keyed relative to key rather than nested under it.
func (s *Store) Get(key string, opts GetOptions) (any, error) {
	cacheable := opts.CommitSHA != ""
	cacheKey := fmt.Sprintf("get|%s|%s|%s|%v", s.ID, opts.CommitSHA, key, opts.Shallow)
	if cacheable {
		if cached, ok := s.queries.Get(cacheKey); ok {
			if cached == nil {
				return nil, ErrNotFound
			}
			return cached, nil
		}
	}

	obj, err := s.lookup(key, opts.branch(), opts.CommitSHA)
	if err != nil {
		if cacheable && err == ErrNotFound {
			s.queries.SetNotFound(cacheKey)
		}
		return nil, err
	}

	var value any
	if obj.IsBlob() {
		value, err = s.decodeObject(obj)
	} else {
		maxLevel := 0
		if opts.Shallow {
			maxLevel = core.Level(key) + 2
		}
		value, err = s.Trees(TraverseOptions{
			Path: key, MaxLevel: maxLevel,
			Branch: opts.Branch, CommitSHA: opts.CommitSHA,
		})
	}
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.queries.SetFound(cacheKey, value)
	}
	return value, nil
}

// lookup resolves key against branch (or the tree at commitSHA, if given),
// consulting and populating the head cache for unpinned master reads.
func (s *Store) lookup(key, branch, commitSHA string) (core.Object, error) {
	if commitSHA == "" && branch == objectstore.MasterBranch {
		if obj, ok := s.heads.get(s.ID, key); ok {
			return obj, nil
		}
	}

	var treeHash plumbing.Hash
	var err error
	if commitSHA != "" {
		treeHash, err = s.persist.TreeAtTransaction(commitSHA)
		if err != nil {
			return core.Object{}, ErrNotFound
		}
	} else {
		treeHash, err = s.currentTree(branch)
		if err != nil {
			return core.Object{}, err
		}
	}

	obj, found, err := s.persist.Lookup(treeHash, key)
	if err != nil {
		return core.Object{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	if !found {
		return core.Object{}, ErrNotFound
	}
	if commitSHA == "" && branch == objectstore.MasterBranch {
		s.heads.put(s.ID, key, obj)
	}
	return obj, nil
}

func (s *Store) decodeObject(obj core.Object) (any, error) {
	if obj.IsTree() {
		return nil, fmt.Errorf("%w: %s is a tree, not a value", ErrInvalidArgument, obj.Path)
	}
	data, err := s.persist.ReadBlob(obj.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	var value any
	if err := s.serializer.Decode(data, &value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializerFailure, err)
	}
	return value, nil
}

// currentTree resolves branch's tree, falling back to master's when branch
// has no ref yet (the implicit-fork read semantics mirroring writes).
func (s *Store) currentTree(branch string) (plumbing.Hash, error) {
	treeHash, err := s.persist.BranchTree(branch)
	if err == objectstore.ErrBranchNotFound {
		return s.persist.BranchTree(objectstore.MasterBranch)
	}
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	return treeHash, nil
}

// PutOptions parameterizes Put.
type PutOptions struct {
	Branch   string // defaults to master
	Flatten  bool   // flatten a nested map into one blob per leaf; false (the zero value) stores value as one blob
	Identity *core.Identity // overrides the store's configured commit identity
}

func (s *Store) identityOr(override *core.Identity) core.Identity {
	if override != nil {
		return *override
	}
	return s.identity
}

// Put writes value at key, flattening nested maps into one blob per leaf
// when Flatten is set and storing value as a single blob otherwise. The write acquires the repository
// lock exactly once for the whole operation (resolve tree, build blobs,
// batch the tree update, commit), so concurrent puts serialize cleanly
// without risking re-entrant deadlock.
func (s *Store) Put(key string, value any, opts PutOptions) (objectstore.Transaction, error) {
	branch := opts.Branch
	if branch == "" {
		branch = objectstore.MasterBranch
	}

	leaves := map[string]any{key: value}
	if opts.Flatten {
		leaves = make(map[string]any)
		core.Flatten(value, key, leaves)
		if len(leaves) == 0 {
			leaves[key] = value
		}
	}

	s.persist.Lock()
	defer s.persist.Unlock()

	treeHash, err := s.currentTreeLocked(branch)
	if err != nil {
		return objectstore.Transaction{}, err
	}

	var changes []objectstore.TreeChange
	for path, leaf := range leaves {
		data, err := s.serializer.Encode(leaf)
		if err != nil {
			return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrSerializerFailure, err)
		}
		blobHash, err := s.persist.CreateBlob(data)
		if err != nil {
			return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
		}
		changes = append(changes, objectstore.TreeChange{Path: path, BlobHash: blobHash})
	}

	newTreeHash, err := s.persist.BatchUpdateTree(treeHash, changes)
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}

	txn, err := s.persist.CommitOnBranch(branch, newTreeHash, s.identityOr(opts.Identity), fmt.Sprintf("Put %s", key))
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}

	if branch == objectstore.MasterBranch {
		for path := range leaves {
			s.heads.evict(s.ID, path)
		}
	}
	return txn, nil
}

// currentTreeLocked is currentTree for callers that already hold the
// repository lock (BranchTree/BranchHead don't lock internally).
func (s *Store) currentTreeLocked(branch string) (plumbing.Hash, error) {
	return s.currentTree(branch)
}

// DeleteOptions parameterizes Delete.
type DeleteOptions struct {
	Branch   string // defaults to master
	Identity *core.Identity // overrides the store's configured commit identity
}

// Delete removes key from branch. If branch doesn't contain key but
// master does, the delete is built from master's tree instead and the
// resulting commit carries both branch's previous tip (if any) and
// master's tip as parents, so a later Merge(branch, master) still removes
// the key from master.
func (s *Store) Delete(key string, opts DeleteOptions) (objectstore.Transaction, error) {
	branch := opts.Branch
	if branch == "" {
		branch = objectstore.MasterBranch
	}
	message := fmt.Sprintf("Delete %s", key)

	s.persist.Lock()
	defer s.persist.Unlock()

	branchHash, branchOk, err := s.persist.BranchHead(branch)
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}

	if branchOk {
		branchTree, err := s.persist.BranchTree(branch)
		if err != nil {
			return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
		}
		if _, found, err := s.persist.Lookup(branchTree, key); err != nil {
			return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
		} else if found {
			newTree, err := s.persist.DeleteTreePath(branchTree, key)
			if err != nil {
				return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
			}
			txn, err := s.persist.CommitOnBranch(branch, newTree, s.identityOr(opts.Identity), message)
			if err != nil {
				return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
			}
			s.evictKeyAndAncestors(key)
			return txn, nil
		}
	}

	masterHash, masterOk, err := s.persist.BranchHead(objectstore.MasterBranch)
	if err != nil || !masterOk {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	masterTree, err := s.persist.BranchTree(objectstore.MasterBranch)
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	_, found, err := s.persist.Lookup(masterTree, key)
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	if !found {
		return objectstore.Transaction{}, ErrNotFound
	}

	newTree, err := s.persist.DeleteTreePath(masterTree, key)
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}

	parents := []plumbing.Hash{masterHash}
	if branchOk {
		parents = append(parents, branchHash)
	}
	txn, err := s.persist.CommitOnBranchWithParents(branch, newTree, parents, s.identityOr(opts.Identity), message)
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	s.evictKeyAndAncestors(key)
	return txn, nil
}

func (s *Store) evictKeyAndAncestors(key string) {
	parts := core.SplitPath(key)
	for i := range parts {
		s.heads.evict(s.ID, core.JoinPath(parts[:i+1]...))
	}
}

// CreateBranch creates branch at the commit from points to, defaulting to
// master's current tip.
func (s *Store) CreateBranch(branch string, from objectstore.Transaction) (objectstore.Transaction, error) {
	s.persist.Lock()
	defer s.persist.Unlock()
	txn, err := s.persist.CreateBranch(branch, from)
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	return txn, nil
}

// BranchHead returns the transaction at branch's current tip.
func (s *Store) BranchHead(branch string) (objectstore.Transaction, error) {
	hash, ok, err := s.persist.BranchHead(branch)
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	if !ok {
		return objectstore.Transaction{}, ErrNotFound
	}
	commit, err := s.persist.Repo().CommitObject(hash)
	if err != nil {
		return objectstore.Transaction{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	return objectstore.Transaction{ID: hash.String(), When: commit.Committer.When}, nil
}

// Merge merges source into target. Merging into master evicts the entire
// head cache for this store before the merge is built, since the set of
// paths it will touch is unbounded and reads never take the write lock: a
// concurrent master read must never observe the new commit against a
// stale head-cache entry. identity is optional and overrides the store's
// configured commit identity.
func (s *Store) Merge(source, target, message string, identity *core.Identity) (objectstore.MergeResult, error) {
	if source == target {
		return objectstore.MergeResult{}, ErrInvalidArgument
	}

	s.persist.Lock()
	defer s.persist.Unlock()

	if target == objectstore.MasterBranch {
		s.heads.evictAll(s.ID)
	}

	result, err := s.persist.Merge(source, target, s.identityOr(identity), message)
	if err != nil {
		return objectstore.MergeResult{}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	return result, nil
}

// Diff reports the paths that differ between the tree at transaction id
// and master's current tip.
func (s *Store) Diff(id string) ([]objectstore.DiffEntry, error) {
	entries, err := s.persist.Diff(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return entries, nil
}

// Gc compacts the underlying repository. Failures are the caller's to log
// and swallow (spec's GcFailure kind never surfaces to an HTTP client).
func (s *Store) Gc() error {
	return s.persist.Gc()
}
