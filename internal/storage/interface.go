package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Download for keys that do not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines the interface for snapshot and document storage.
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL (or path) for accessing an object
	GetURL(key string) string

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}

// ReadObject downloads key and returns its full contents.
func ReadObject(ctx context.Context, s ObjectStorage, key string) ([]byte, error) {
	rc, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// WriteObject uploads data under key.
func WriteObject(ctx context.Context, s ObjectStorage, key string, data []byte, contentType string) error {
	return s.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}
