package core

import "encoding/json"

// Serializer converts between stored leaf values and their wire
// representation. The default Serializer is JSON, matching the value
// typing HeroDB exposes over its HTTP surface (ints, bools, strings, and
// nested objects all round-trip through it).
type Serializer interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte, out *any) error
}

// JSONSerializer is the default Serializer.
type JSONSerializer struct{}

func (JSONSerializer) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONSerializer) Decode(data []byte, out *any) error {
	return json.Unmarshal(data, out)
}
