package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitPath(t *testing.T) {
	require.Nil(t, SplitPath(""))
	require.Equal(t, []string{"a"}, SplitPath("a"))
	require.Equal(t, []string{"a", "b"}, SplitPath("/a/b/"))
}

func TestJoinPath(t *testing.T) {
	require.Equal(t, "a/b", JoinPath("a", "b"))
	require.Equal(t, "a/b", JoinPath("", "a", "b", ""))
	require.Equal(t, "", JoinPath())
}

func TestLevel(t *testing.T) {
	require.Equal(t, 0, Level(""))
	require.Equal(t, 1, Level("a"))
	require.Equal(t, 3, Level("a/b/c"))
}

func TestFlattenLeafValue(t *testing.T) {
	out := map[string]any{}
	Flatten("plain", "foo", out)
	require.Equal(t, map[string]any{"foo": "plain"}, out)
}

func TestFlattenNestedMap(t *testing.T) {
	out := map[string]any{}
	Flatten(map[string]any{
		"foo": "foo",
		"a":   map[string]any{"b": "a/b"},
	}, "bar", out)
	require.Equal(t, "foo", out["bar/foo"])
	require.Equal(t, "a/b", out["bar/a/b"])
}

func TestFlattenKeepsEmptyMapAsLeaf(t *testing.T) {
	out := map[string]any{}
	Flatten(map[string]any{"empty": map[string]any{}}, "k", out)
	require.Equal(t, map[string]any{}, out["k/empty"])
}

func TestExpandInverseOfFlatten(t *testing.T) {
	out := map[string]any{}
	Expand("a/b/c", "a/b/c", out)
	Expand("a/1", 1.0, out)
	inner, ok := out["a"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 1.0, inner["1"])
	nested, ok := inner["b"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "a/b/c", nested["c"])
}
