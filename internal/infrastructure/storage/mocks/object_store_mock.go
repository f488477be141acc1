package mocks

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/example/gallery-delivery/internal/infrastructure/storage"
)

// MockObjectStore is an in-memory implementation of storage.ObjectStore for
// testing, supporting per-key injected fetch failures.
type MockObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// GetErrs makes Get fail for specific keys.
	GetErrs map[string]error
	// PutErr makes every Put fail.
	PutErr error

	PutCalls []PutCall
}

// PutCall records parameters passed to Put.
type PutCall struct {
	Key         string
	Body        []byte
	ContentType string
}

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects: make(map[string][]byte),
		GetErrs: make(map[string]error),
	}
}

// Seed stores bytes directly for testing.
func (m *MockObjectStore) Seed(key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
}

func (m *MockObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.GetErrs[key]; ok {
		return nil, err
	}
	body, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (m *MockObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCalls = append(m.PutCalls, PutCall{Key: key, Body: body, ContentType: contentType})

	if m.PutErr != nil {
		return m.PutErr
	}
	m.objects[key] = body
	return nil
}

func (m *MockObjectStore) List(ctx context.Context, prefix string) ([]storage.ObjectMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var metadata []storage.ObjectMetadata
	for key, body := range m.objects {
		if strings.HasPrefix(key, prefix) {
			metadata = append(metadata, storage.ObjectMetadata{Key: key, Size: int64(len(body))})
		}
	}
	return metadata, nil
}

// Object returns the stored bytes for a key, for assertions.
func (m *MockObjectStore) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.objects[key]
	return body, ok
}
