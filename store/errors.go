package store

import "errors"

// Sentinel errors returned by Store operations, mapped by httpapi to HTTP
// status codes. ConflictingShape is deliberately not an error: writing a
// value over an existing sub-tree path (or vice versa) replaces silently.
var (
	// ErrNotFound is returned when a key, branch, or transaction does not
	// resolve to anything in the store.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidArgument is returned for malformed input: bad paths,
	// unparsable patterns, level bounds that cannot be satisfied.
	ErrInvalidArgument = errors.New("store: invalid argument")
	// ErrBackendFailure wraps an unexpected objectstore/git failure.
	ErrBackendFailure = errors.New("store: backend failure")
	// ErrSerializerFailure wraps a value encode/decode failure.
	ErrSerializerFailure = errors.New("store: serializer failure")
)
