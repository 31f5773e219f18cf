package driven

import (
	"context"
	"fmt"
)

// DocumentStore defines the interface for whole-document reads and writes.
// This is a driven port implemented by concrete adapters (e.g., the file system).
type DocumentStore interface {
	// Read returns the entire document at path. Failures are reported as *ReadError.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write replaces the document at path with data. Failures are reported
	// as *WriteError.
	Write(ctx context.Context, path string, data []byte) error
}

// ReadError reports a source document that is missing or unreadable.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError reports a destination document that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
