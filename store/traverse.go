package store

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/herodb/herodb/core"
	"github.com/herodb/herodb/objectstore"
)

// TraverseOptions parameterizes Keys, Entries, and Trees. All three walk
// the same node set; they differ only in what they emit per node.
type TraverseOptions struct {
	Path        string // subtree to start from; "" is the store root
	Pattern     string // regex a path must match to be emitted; "" matches everything
	MinLevel    int    // emit only paths with level strictly greater than MinLevel; 0 means no lower bound
	MaxLevel    int    // emit only paths with level <= MaxLevel; 0 means no upper bound
	DepthFirst  bool   // pre-order depth-first when true, breadth-first when false (the zero value)
	FilterBy    string // "blob", "tree", or "" for both
	ObjectDepth int    // Trees only: collapse everything above the last ObjectDepth segments into one flat top-level key; 0 means full nesting
	Branch      string // defaults to master
	CommitSHA   string // pins the traversal to a transaction
}

// cacheKey builds the query-cache key for op against these options, scoped
// by storeID so the one process-wide cache never confuses two stores'
// results for the same path.
func (o TraverseOptions) cacheKey(storeID, op string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d|%v|%s|%s|%d",
		op, storeID, o.CommitSHA, o.Branch, o.Path, o.MinLevel, o.MaxLevel, o.DepthFirst, o.Pattern, o.FilterBy, o.ObjectDepth)
}

func (o TraverseOptions) branch() string {
	if o.Branch == "" {
		return objectstore.MasterBranch
	}
	return o.Branch
}

type traverseNode struct {
	path string
	obj  core.Object
}

// rootTree resolves the tree a traversal starts from, honoring CommitSHA
// over Branch exactly like Get.
func (s *Store) rootTree(opts TraverseOptions) (plumbing.Hash, error) {
	if opts.CommitSHA != "" {
		return s.persist.TreeAtTransaction(opts.CommitSHA)
	}
	return s.currentTree(opts.branch())
}

// walk enumerates every node at or below opts.Path, cooperatively yielding
// the scheduler between nodes the way a generator-based traversal would,
// and opportunistically populating the head cache for unpinned master
// reads as it goes (mirroring what individual Get calls would have cached
// had they been made instead).
func (s *Store) walk(opts TraverseOptions, visit func(traverseNode) error) error {
	rootHash, err := s.rootTree(opts)
	if err != nil {
		return err
	}

	startPath := opts.Path
	startObj, found, err := s.persist.Lookup(rootHash, startPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	if !found {
		if startPath == core.RootPath {
			startObj = core.Object{Path: core.RootPath, Kind: core.KindTree, Hash: rootHash}
		} else {
			return ErrNotFound
		}
	}

	var re *regexp.Regexp
	if opts.Pattern != "" {
		re, err = regexp.Compile(opts.Pattern)
		if err != nil {
			return fmt.Errorf("%w: bad pattern: %v", ErrInvalidArgument, err)
		}
	}

	queue := []traverseNode{{path: startPath, obj: startObj}}
	cacheable := opts.CommitSHA == "" && opts.branch() == objectstore.MasterBranch

	for len(queue) > 0 {
		var node traverseNode
		if opts.DepthFirst {
			node = queue[len(queue)-1]
			queue = queue[:len(queue)-1]
		} else {
			node = queue[0]
			queue = queue[1:]
		}
		runtime.Gosched()

		if cacheable {
			s.heads.put(s.ID, node.path, node.obj)
		}

		level := core.Level(node.path)
		emit := level > opts.MinLevel
		if opts.MaxLevel > 0 && level > opts.MaxLevel {
			emit = false
		}
		if re != nil && !re.MatchString(node.path) {
			emit = false
		}
		switch opts.FilterBy {
		case "blob":
			emit = emit && node.obj.IsBlob()
		case "tree":
			emit = emit && node.obj.IsTree()
		}
		if node.path == core.RootPath {
			emit = false // the root itself is never a result, only its descendants
		}
		if emit {
			if err := visit(node); err != nil {
				return err
			}
		}

		if !node.obj.IsTree() {
			continue
		}
		if opts.MaxLevel > 0 && level >= opts.MaxLevel {
			continue // descending further can only produce paths beyond MaxLevel
		}

		tree, err := s.persist.Tree(node.obj.Hash)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBackendFailure, err)
		}
		children := childNodes(node.path, tree)
		if opts.DepthFirst {
			// push in reverse so the queue still pops children in
			// declaration order despite using the stack end
			for i := len(children) - 1; i >= 0; i-- {
				queue = append(queue, children[i])
			}
		} else {
			queue = append(queue, children...)
		}
	}
	return nil
}

func childNodes(parentPath string, tree *object.Tree) []traverseNode {
	nodes := make([]traverseNode, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		childPath := core.JoinPath(parentPath, entry.Name)
		kind := core.KindBlob
		if entry.Mode == filemode.Dir {
			kind = core.KindTree
		}
		nodes = append(nodes, traverseNode{
			path: childPath,
			obj:  core.Object{Path: childPath, Kind: kind, Hash: entry.Hash},
		})
	}
	return nodes
}

// Keys returns every path under opts.Path matching the given filters,
// without decoding values. Pinned to a commit_sha, the result is memoized
// in the store's query cache.
func (s *Store) Keys(opts TraverseOptions) ([]string, error) {
	cacheable := opts.CommitSHA != ""
	cacheKey := opts.cacheKey(s.ID, "keys")
	if cacheable {
		if cached, ok := s.queries.Get(cacheKey); ok {
			if cached == nil {
				return nil, ErrNotFound
			}
			keys, _ := cached.([]string)
			return keys, nil
		}
	}

	var keys []string
	err := s.walk(opts, func(n traverseNode) error {
		keys = append(keys, n.path)
		return nil
	})
	if err != nil {
		if cacheable && err == ErrNotFound {
			s.queries.SetNotFound(cacheKey)
		}
		return nil, err
	}
	if cacheable {
		s.queries.SetFound(cacheKey, keys)
	}
	return keys, nil
}

// Entry pairs a matched path with its decoded value (nil for a tree node),
// in the order the traversal visited it — the observable effect of
// depth_first/breadth-first ordering that a map would discard.
type Entry struct {
	Path  string
	Value any
}

// Entries returns every matching path paired with its decoded value, in
// traversal order. Tree nodes that pass the filter are emitted with a nil
// value. Pinned to a commit_sha, the result is memoized in the store's
// query cache.
func (s *Store) Entries(opts TraverseOptions) ([]Entry, error) {
	cacheable := opts.CommitSHA != ""
	cacheKey := opts.cacheKey(s.ID, "entries")
	if cacheable {
		if cached, ok := s.queries.Get(cacheKey); ok {
			if cached == nil {
				return nil, ErrNotFound
			}
			entries, _ := cached.([]Entry)
			return entries, nil
		}
	}

	var out []Entry
	err := s.walk(opts, func(n traverseNode) error {
		if n.obj.IsBlob() {
			value, err := s.decodeObject(n.obj)
			if err != nil {
				return err
			}
			out = append(out, Entry{Path: n.path, Value: value})
		} else {
			out = append(out, Entry{Path: n.path, Value: nil})
		}
		return nil
	})
	if err != nil {
		if cacheable && err == ErrNotFound {
			s.queries.SetNotFound(cacheKey)
		}
		return nil, err
	}
	if cacheable {
		s.queries.SetFound(cacheKey, out)
	}
	return out, nil
}

// Trees folds every matching blob back into a nested document. Paths are
// grouped by their first segment below opts.Path and reassembled into a
// nested map via Expand — unless ObjectDepth is set, in which case each
// path's prefix (everything above its last ObjectDepth segments) collapses
// into a single flat top-level key instead of nesting all the way down.
// Pinned to a commit_sha, the result is memoized in the store's query
// cache.
func (s *Store) Trees(opts TraverseOptions) (map[string]any, error) {
	cacheable := opts.CommitSHA != ""
	cacheKey := opts.cacheKey(s.ID, "trees")
	if cacheable {
		if cached, ok := s.queries.Get(cacheKey); ok {
			if cached == nil {
				return nil, ErrNotFound
			}
			tree, _ := cached.(map[string]any)
			return tree, nil
		}
	}

	out := make(map[string]any)
	basePrefix := opts.Path
	err := s.walk(opts, func(n traverseNode) error {
		if !n.obj.IsBlob() {
			return nil
		}
		value, err := s.decodeObject(n.obj)
		if err != nil {
			return err
		}
		rel := n.path
		if basePrefix != "" {
			rel = n.path[len(basePrefix):]
		}
		foldInto(rel, value, opts.ObjectDepth, out)
		return nil
	})
	if err != nil {
		if cacheable && err == ErrNotFound {
			s.queries.SetNotFound(cacheKey)
		}
		return nil, err
	}
	if cacheable {
		s.queries.SetFound(cacheKey, out)
	}
	return out, nil
}

// foldInto inserts value at rel into out, nesting the full path unless
// objectDepth is positive. When it is, only the last objectDepth segments
// of rel nest; everything above them is joined back into a single flat
// top-level key, matching object_depth's "path prefix rsplit by / keeping
// the last N segments" semantics. objectDepth beyond the number of
// separators in rel behaves as full nesting, same as 0.
func foldInto(rel string, value any, objectDepth int, out map[string]any) {
	if objectDepth <= 0 {
		core.Expand(rel, value, out)
		return
	}

	parts := core.SplitPath(rel)
	if len(parts) == 0 {
		return
	}
	nested := objectDepth
	if nested > len(parts)-1 {
		nested = len(parts) - 1
	}
	prefixParts, restParts := parts[:len(parts)-nested], parts[len(parts)-nested:]
	topKey := strings.Join(prefixParts, "/")

	if len(restParts) == 0 {
		out[topKey] = value
		return
	}
	child, ok := out[topKey].(map[string]any)
	if !ok {
		child = make(map[string]any)
		out[topKey] = child
	}
	core.Expand(strings.Join(restParts, "/"), value, child)
}
