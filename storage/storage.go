// Package storage provides the durable key/value store used to persist
// session state (bearer token, serialized user, timer durations and other
// preferences) across client restarts.
package storage

import "errors"

// ErrNotFound is returned when no value exists under the requested key.
var ErrNotFound = errors.New("key not found")

// Store defines a flat string key/value namespace. All operations are
// synchronous and last-write-wins; no transactional guarantees are made
// across keys.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)
	// Set writes the value under key, overwriting any previous value.
	Set(key string, value string) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(key string) error
	// Has reports whether a value exists under key.
	Has(key string) bool
}
