// Package storage defines the blob storage provider used to persist index
// snapshots. The abstraction keeps the index layer independent of where
// snapshots live (local filesystem, memory, or Google Cloud Storage).
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound signals an absent object. Index loading treats it as "start
// from an empty store", never as a failure.
var ErrNotFound = errors.New("object not found")

// Provider is the common interface for snapshot blob storage.
type Provider interface {
	// Save writes data under the given object name, replacing any
	// previous version.
	Save(ctx context.Context, objectName string, data []byte) error

	// Load reads the object back, or ErrNotFound if it does not exist.
	Load(ctx context.Context, objectName string) ([]byte, error)
}

// MemoryProvider keeps objects in a map. Used by tests and dry runs.
type MemoryProvider struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryProvider builds an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{objects: make(map[string][]byte)}
}

// Save stores a copy of data.
func (m *MemoryProvider) Save(_ context.Context, objectName string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[objectName] = buf
	return nil
}

// Load returns a copy of the stored object.
func (m *MemoryProvider) Load(_ context.Context, objectName string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[objectName]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}
