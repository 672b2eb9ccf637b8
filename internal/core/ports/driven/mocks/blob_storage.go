package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

var _ driven.BlobStorage = (*MockBlobStorage)(nil)

// MockBlobStorage keeps objects in memory.
type MockBlobStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte

	ReadErr  error
	WriteErr error
}

// NewMockBlobStorage creates an empty store
func NewMockBlobStorage() *MockBlobStorage {
	return &MockBlobStorage{objects: make(map[string][]byte)}
}

func (m *MockBlobStorage) Write(ctx context.Context, key string, r io.Reader, contentType string) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MockBlobStorage) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	return data, nil
}

func (m *MockBlobStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MockBlobStorage) Ping(ctx context.Context) error {
	return nil
}

// Put stores an object directly (for test setup)
func (m *MockBlobStorage) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

// Has reports whether an object exists
func (m *MockBlobStorage) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}
