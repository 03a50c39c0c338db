package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/herodb/herodb/objectstore"
)

func TestTreesFiltersByPatternAcrossTopLevelGroups(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/1", map[string]any{"x": float64(1)}, PutOptions{Flatten: true})
	require.NoError(t, err)
	_, err = s.Put("b/1", map[string]any{"x": float64(3)}, PutOptions{Flatten: true})
	require.NoError(t, err)

	result, err := s.Trees(TraverseOptions{Pattern: "a"})
	require.NoError(t, err)
	require.Contains(t, result, "a")
	require.NotContains(t, result, "b")
}

func TestTreesMaxLevelBoundsDescent(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/1", map[string]any{"x": float64(1)}, PutOptions{Flatten: true})
	require.NoError(t, err)

	shallow, err := s.Trees(TraverseOptions{Pattern: "a", MaxLevel: 1})
	require.NoError(t, err)
	require.Empty(t, shallow)

	deep, err := s.Trees(TraverseOptions{Pattern: "a", MaxLevel: 3})
	require.NoError(t, err)
	require.Contains(t, deep, "a")
}

func TestKeysIsSubsetOfEntries(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/b", "v1", PutOptions{Flatten: true})
	require.NoError(t, err)
	_, err = s.Put("a/c", "v2", PutOptions{Flatten: true})
	require.NoError(t, err)

	keys, err := s.Keys(TraverseOptions{FilterBy: "blob"})
	require.NoError(t, err)

	entries, err := s.Entries(TraverseOptions{})
	require.NoError(t, err)

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	for _, k := range keys {
		require.Contains(t, paths, k)
	}
}

func TestEntriesEmitsNilForTreeNodes(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/b", "v", PutOptions{Flatten: true})
	require.NoError(t, err)

	entries, err := s.Entries(TraverseOptions{FilterBy: "tree"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a", entries[0].Path)
	require.Nil(t, entries[0].Value)
}

func TestEntriesPreservesDepthFirstOrder(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/1", "v1", PutOptions{Flatten: true})
	require.NoError(t, err)
	_, err = s.Put("a/2", "v2", PutOptions{Flatten: true})
	require.NoError(t, err)

	entries, err := s.Entries(TraverseOptions{FilterBy: "blob", DepthFirst: true})
	require.NoError(t, err)
	require.Equal(t, []string{"a/1", "a/2"}, []string{entries[0].Path, entries[1].Path})
}

func TestTreesObjectDepthCollapsesPrefix(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/b/c/d", "v", PutOptions{Flatten: true})
	require.NoError(t, err)

	result, err := s.Trees(TraverseOptions{ObjectDepth: 2})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"a/b": map[string]any{"c": map[string]any{"d": "v"}},
	}, result)
}

func TestTreesObjectDepthZeroFullyNests(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/b/c", "v", PutOptions{Flatten: true})
	require.NoError(t, err)

	result, err := s.Trees(TraverseOptions{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "v"}},
	}, result)
}

func TestQueryCacheMemoizesPinnedKeys(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/b", "v", PutOptions{Flatten: true})
	require.NoError(t, err)
	txn, err := s.BranchHead(objectstore.MasterBranch)
	require.NoError(t, err)

	s.QueryCache().ResetStats()
	_, err = s.Keys(TraverseOptions{CommitSHA: txn.ID})
	require.NoError(t, err)
	_, err = s.Keys(TraverseOptions{CommitSHA: txn.ID})
	require.NoError(t, err)

	stats := s.QueryCache().Stats()
	require.Equal(t, int64(2), stats.Requests)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}
