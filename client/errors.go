package client

import "errors"

// ErrNotFound is returned when the server reports a 404 for a path,
// branch, or transaction.
var ErrNotFound = errors.New("client: not found")
