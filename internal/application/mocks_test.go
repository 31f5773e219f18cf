package application

import (
	"context"
	"sync"

	"github.com/alorle/iptv-playlist/internal/resolution"
)

// mockDocumentStore is a mock implementation of driven.DocumentStore for testing.
type mockDocumentStore struct {
	readFunc  func(ctx context.Context, path string) ([]byte, error)
	writeFunc func(ctx context.Context, path string, data []byte) error

	mu      sync.Mutex
	written map[string][]byte
}

func (m *mockDocumentStore) Read(ctx context.Context, path string) ([]byte, error) {
	if m.readFunc != nil {
		return m.readFunc(ctx, path)
	}
	return nil, nil
}

func (m *mockDocumentStore) Write(ctx context.Context, path string, data []byte) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, path, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.written == nil {
		m.written = make(map[string][]byte)
	}
	m.written[path] = data
	return nil
}

// newDocs returns a store serving docs by path and recording writes.
func newDocs(docs map[string]string) *mockDocumentStore {
	return &mockDocumentStore{
		readFunc: func(ctx context.Context, path string) ([]byte, error) {
			return []byte(docs[path]), nil
		},
	}
}

// mockURLResolver is a mock implementation of driven.URLResolver for testing.
type mockURLResolver struct {
	resolveFunc func(ctx context.Context, rawURL string) (resolution.Resolution, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *mockURLResolver) Resolve(ctx context.Context, rawURL string) (resolution.Resolution, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[rawURL]++
	m.mu.Unlock()

	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, rawURL)
	}
	return resolution.Resolution{}, nil
}

func (m *mockURLResolver) callCount(rawURL string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[rawURL]
}

// mockResolutionRepository is a mock implementation of driven.ResolutionRepository for testing.
type mockResolutionRepository struct {
	saveFunc            func(ctx context.Context, r resolution.Resolution) error
	findBySourceURLFunc func(ctx context.Context, sourceURL string) (resolution.Resolution, error)
	countFunc           func(ctx context.Context) (int, error)
}

func (m *mockResolutionRepository) Save(ctx context.Context, r resolution.Resolution) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, r)
	}
	return nil
}

func (m *mockResolutionRepository) FindBySourceURL(ctx context.Context, sourceURL string) (resolution.Resolution, error) {
	if m.findBySourceURLFunc != nil {
		return m.findBySourceURLFunc(ctx, sourceURL)
	}
	return resolution.Resolution{}, resolution.ErrNotFound
}

func (m *mockResolutionRepository) Count(ctx context.Context) (int, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}
