package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExternalSetGetRoundTrip(t *testing.T) {
	e := NewExternal()
	e.Set("foo", "bar", time.Minute)

	v, ok := e.Get("foo")
	require.True(t, ok)
	require.Equal(t, "bar", v)
}

func TestExternalEntryExpiresAfterTTL(t *testing.T) {
	e := NewExternal()
	e.Set("foo", "bar", -time.Second) // already expired

	_, ok := e.Get("foo")
	require.False(t, ok)
	require.Equal(t, 0, e.Len())
}
