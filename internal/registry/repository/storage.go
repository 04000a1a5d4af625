package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Storage.Get when the key does not exist.
var ErrNotFound = errors.New("not found")

// Storage is a key-value store of JSON documents grouped into named
// collections. Every operation is atomic per key.
type Storage interface {
	Get(ctx context.Context, collection, key string) (json.RawMessage, error)
	Set(ctx context.Context, collection, key string, value any) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, collection, key string) error
	GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error)
}

// MemoryStorage is an in-process Storage used in development mode and tests.
type MemoryStorage struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{collections: make(map[string]map[string]json.RawMessage)}
}

// Get implements Storage.
func (m *MemoryStorage) Get(_ context.Context, collection, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), v...), nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(_ context.Context, collection, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		c = make(map[string]json.RawMessage)
		m.collections[collection] = c
	}
	c[key] = raw
	return nil
}

// Delete implements Storage.
func (m *MemoryStorage) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], key)
	return nil
}

// GetAll implements Storage.
func (m *MemoryStorage) GetAll(_ context.Context, collection string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.collections[collection]))
	for k, v := range m.collections[collection] {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out, nil
}
