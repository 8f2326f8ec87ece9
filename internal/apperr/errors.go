// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	ErrUpstream = errors.New("upstream failure")
	// ErrPersist marks a mutation that was applied in memory but could not be
	// written to durable storage.
	ErrPersist = errors.New("persist failed")
)
