package server

import "errors"

var (
	// ErrNotFound is returned when no store is registered under a name.
	ErrNotFound = errors.New("server: store not found")

	// ErrReadOnly is returned when setting a store that is not writable.
	ErrReadOnly = errors.New("server: store is read-only")

	// ErrExists is returned when registering a name twice.
	ErrExists = errors.New("server: store already registered")

	// ErrInvalidValue is returned for values that are not valid JSON.
	ErrInvalidValue = errors.New("server: value is not valid JSON")
)
