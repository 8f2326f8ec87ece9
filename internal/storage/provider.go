// Package storage defines the durable key/value store behind local state.
package storage

// Provider is the interface for durable key/value storage.
//
// Values are opaque byte slices that are always written wholesale; there are
// no partial updates.
type Provider interface {
	// Get returns the value stored under key, or an error wrapping
	// apperr.ErrNotFound when nothing has been stored yet.
	Get(key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(key string, value []byte) error
}
