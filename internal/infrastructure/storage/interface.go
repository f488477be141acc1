package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Get when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectMetadata describes one stored object.
type ObjectMetadata struct {
	Key  string
	Size int64
}

// ObjectStore is the typed port over binary asset storage.
type ObjectStore interface {
	// Get returns the object's byte stream or ErrObjectNotFound.
	// The caller closes the stream.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put stores bytes under key. Objects are private; downloads are served
	// through a separate collaborator, never by direct URL.
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// List returns metadata for all objects under the prefix.
	List(ctx context.Context, prefix string) ([]ObjectMetadata, error)
}
