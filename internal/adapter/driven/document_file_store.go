package driven

import (
	"context"
	"os"

	"github.com/alorle/iptv-playlist/internal/port/driven"
)

// DocumentFileStore implements the DocumentStore port on the local file system.
type DocumentFileStore struct {
	perm os.FileMode
}

// NewDocumentFileStore creates a file store that writes documents with mode 0644.
func NewDocumentFileStore() *DocumentFileStore {
	return &DocumentFileStore{perm: 0644}
}

// Read returns the full contents of the file at path.
func (s *DocumentFileStore) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &driven.ReadError{Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &driven.ReadError{Path: path, Err: err}
	}
	return data, nil
}

// Write creates or truncates the file at path and writes data to it.
func (s *DocumentFileStore) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &driven.WriteError{Path: path, Err: err}
	}

	if err := os.WriteFile(path, data, s.perm); err != nil {
		return &driven.WriteError{Path: path, Err: err}
	}
	return nil
}
