package persist

import (
	"context"
	"sync"
)

// MemoryBackend keeps snapshots in memory.
// Suitable for tests and single-process deployments that only need restore
// across store re-creation, not across restarts.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Save stores a copy of data under key.
func (m *MemoryBackend) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBackendClosed
	}

	// Make a copy of data to prevent mutations
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	m.data[key] = dataCopy
	return nil
}

// Load returns a copy of the snapshot for key, or nil if none exists.
func (m *MemoryBackend) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrBackendClosed
	}

	d, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	dataCopy := make([]byte, len(d))
	copy(dataCopy, d)
	return dataCopy, nil
}

// Delete removes the snapshot for key.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrBackendClosed
	}
	delete(m.data, key)
	return nil
}

// Close releases the stored snapshots.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Count returns the number of stored snapshots.
// This is for monitoring/testing purposes.
func (m *MemoryBackend) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
