package persistence

import (
	"context"
	"errors"
	"sync"
)

var errMemoryUnavailable = errors.New("memory storage unavailable")

// MemoryStorage is an in-process Storage. FailReads and FailWrites simulate
// an unavailable backend.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string]string

	FailReads  bool
	FailWrites bool
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

// Get implements Storage.
func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return "", false, errMemoryUnavailable
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errMemoryUnavailable
	}
	m.data[key] = value
	return nil
}

// Remove implements Storage.
func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errMemoryUnavailable
	}
	delete(m.data, key)
	return nil
}
