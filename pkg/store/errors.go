package store

import "errors"

// ErrNoSources is returned when a derived store is constructed without any
// source stores. No subscription is made.
var ErrNoSources = errors.New("store: derived store requires at least one source")
