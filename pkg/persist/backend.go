package persist

import (
	"context"
	"errors"
)

// ErrBackendClosed is returned when operations are attempted on a closed backend.
var ErrBackendClosed = errors.New("persist: backend is closed")

// Backend defines the interface for snapshot persistence.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Save persists data under key, overwriting any previous snapshot.
	Save(ctx context.Context, key string, data []byte) error

	// Load retrieves the snapshot for key.
	// Returns (nil, nil) if no snapshot exists.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the snapshot for key.
	// Should not return an error if the snapshot doesn't exist.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}
