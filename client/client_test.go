package client

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/herodb/herodb/core"
	"github.com/herodb/herodb/httpapi"
	"github.com/herodb/herodb/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := store.NewRegistry(t.TempDir(), core.Identity{Name: "herodb", Email: "herodb@example.com"})
	return httptest.NewServer(httpapi.NewServer(registry, nil))
}

func TestClientPutGetRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(srv.URL, "demo")
	_, err := c.Put("foo", "foo", PutOptions{})
	require.NoError(t, err)

	value, err := c.Get("foo", GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "foo", value)
}

func TestClientGetMissingReturnsErrNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(srv.URL, "demo")
	_, err := c.Get("missing", GetOptions{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClientDeleteThenGetMissing(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(srv.URL, "demo")
	_, err := c.Put("foo", "foo", PutOptions{})
	require.NoError(t, err)

	_, err = c.Delete("foo", "")
	require.NoError(t, err)

	_, err = c.Get("foo", GetOptions{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClientKeysListsWrittenPaths(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(srv.URL, "demo")
	_, err := c.Put("a/b", "v", PutOptions{})
	require.NoError(t, err)

	keys, err := c.Keys(TraverseOptions{})
	require.NoError(t, err)
	require.Contains(t, keys, "a/b")
}

func TestClientTreesObjectDepthCollapsesPrefix(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(srv.URL, "demo")
	_, err := c.Put("a/b/c/d", "v", PutOptions{})
	require.NoError(t, err)

	tree, err := c.Trees(TraverseOptions{ObjectDepth: 2})
	require.NoError(t, err)
	require.Contains(t, tree, "a/b")
}

func TestClientMergePropagatesBranchWrite(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c := New(srv.URL, "demo")
	_, err := c.Put("foo", "foo", PutOptions{Branch: "feature"})
	require.NoError(t, err)

	_, err = c.Merge("feature", "")
	require.NoError(t, err)

	value, err := c.Get("foo", GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "foo", value)
}
