package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/herodb/herodb/core"
	"github.com/herodb/herodb/objectstore"
	"github.com/herodb/herodb/store/cache"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	identity := core.Identity{Name: "Test", Email: "test@example.com"}
	persist, err := objectstore.OpenMemory(identity)
	require.NoError(t, err)
	queries := cache.New(cache.NewLRU(cache.DefaultLRUCapacity), 0)
	return Open("test-store", persist, identity, queries)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("foo", "foo", PutOptions{Flatten: true})
	require.NoError(t, err)

	value, err := s.Get("foo", GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "foo", value)
}

func TestPutLastWriterWinsOnSameBranch(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/b", "v", PutOptions{Flatten: true})
	require.NoError(t, err)
	_, err = s.Put("a/b", "w", PutOptions{Flatten: true})
	require.NoError(t, err)

	value, err := s.Get("a/b", GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "w", value)
}

func TestPutReplacesBlobWithTreeOnCollision(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("foo", "foo", PutOptions{Flatten: true})
	require.NoError(t, err)
	_, err = s.Put("a/b", "a/b", PutOptions{Flatten: true})
	require.NoError(t, err)
	_, err = s.Put("a/b/c", "a/b/c", PutOptions{Flatten: true})
	require.NoError(t, err)

	value, err := s.Get("a/b/c", GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "a/b/c", value)

	whole, err := s.Get("a", GetOptions{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"b": map[string]any{"c": "a/b/c"}}, whole)
}

func TestPutWithoutFlattenStoresSingleBlob(t *testing.T) {
	s := newTestStore(t)

	doc := map[string]any{"foo": "foo", "a/b": "a/b", "x/y/z": "x/y/z"}
	_, err := s.Put("bar", doc, PutOptions{Flatten: false})
	require.NoError(t, err)

	value, err := s.Get("bar", GetOptions{})
	require.NoError(t, err)
	require.Equal(t, doc, value)
}

func TestDeleteRemovesKeyAndPrunesAncestor(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a/b", "v", PutOptions{Flatten: true})
	require.NoError(t, err)
	_, err = s.Delete("a/b", DeleteOptions{})
	require.NoError(t, err)

	_, err = s.Get("a/b", GetOptions{})
	require.ErrorIs(t, err, ErrNotFound)

	whole, err := s.Get("a", GetOptions{})
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, whole)
}

func TestMergeBringsBranchWriteToMaster(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("foo", "foo", PutOptions{Branch: "b1", Flatten: true})
	require.NoError(t, err)

	_, err = s.Merge("b1", objectstore.MasterBranch, "Merge b1 to master", nil)
	require.NoError(t, err)

	value, err := s.Get("foo", GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "foo", value)
}

func TestDeleteFallsBackToMasterThenMergePropagates(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("foo", "foo", PutOptions{Flatten: true})
	require.NoError(t, err)

	_, err = s.Delete("foo", DeleteOptions{Branch: "b1"})
	require.NoError(t, err)

	_, err = s.Merge("b1", objectstore.MasterBranch, "Merge b1 to master", nil)
	require.NoError(t, err)

	_, err = s.Get("foo", GetOptions{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMergeRejectsSourceEqualsTarget(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Merge("master", "master", "Merge master to master", nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetPinnedCommitIsSnapshotStable(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("foo", "foo", PutOptions{Flatten: true})
	require.NoError(t, err)
	txn, err := s.BranchHead(objectstore.MasterBranch)
	require.NoError(t, err)

	_, err = s.Put("foo", "changed", PutOptions{Flatten: true})
	require.NoError(t, err)

	value, err := s.Get("foo", GetOptions{CommitSHA: txn.ID})
	require.NoError(t, err)
	require.Equal(t, "foo", value)
}

func TestQueryCacheCountsRequestsHitsMisses(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("foo", "foo", PutOptions{Flatten: true})
	require.NoError(t, err)
	txn, err := s.BranchHead(objectstore.MasterBranch)
	require.NoError(t, err)

	_, err = s.Get("foo", GetOptions{CommitSHA: txn.ID})
	require.NoError(t, err)
	_, err = s.Get("foo", GetOptions{CommitSHA: txn.ID})
	require.NoError(t, err)

	stats := s.QueryCache().Stats()
	require.Equal(t, int64(2), stats.Requests)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}
