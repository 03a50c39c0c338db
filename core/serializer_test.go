package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONSerializerRoundTrip(t *testing.T) {
	s := JSONSerializer{}

	data, err := s.Encode(map[string]any{"x": 1.0})
	require.NoError(t, err)

	var out any
	require.NoError(t, s.Decode(data, &out))
	require.Equal(t, map[string]any{"x": 1.0}, out)
}

func TestJSONSerializerDecodeInvalid(t *testing.T) {
	s := JSONSerializer{}
	var out any
	require.Error(t, s.Decode([]byte("{not json"), &out))
}
