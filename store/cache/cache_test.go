package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueryCacheMissThenHit(t *testing.T) {
	c := New(NewLRU(10), time.Minute)

	_, ok := c.Get("get|abc|foo|false")
	require.False(t, ok)

	c.SetFound("get|abc|foo|false", "foo")

	v, ok := c.Get("get|abc|foo|false")
	require.True(t, ok)
	require.Equal(t, "foo", v)

	stats := c.Stats()
	require.Equal(t, int64(2), stats.Requests)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestQueryCacheMemoizesNotFound(t *testing.T) {
	c := New(NewLRU(10), time.Minute)

	c.SetNotFound("get|abc|missing|false")

	v, ok := c.Get("get|abc|missing|false")
	require.True(t, ok)
	require.Nil(t, v)
}

func TestQueryCacheResetStats(t *testing.T) {
	c := New(NewLRU(10), time.Minute)
	c.Get("x")
	c.ResetStats()

	stats := c.Stats()
	require.Equal(t, int64(0), stats.Requests)
	require.Equal(t, int64(0), stats.Hits)
	require.Equal(t, int64(0), stats.Misses)
}
