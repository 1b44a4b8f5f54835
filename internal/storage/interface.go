package storage

import (
	"context"
	"io"
)

// StoredObject locates a persisted artifact.
type StoredObject struct {
	Key string
	URL string
}

// ObjectStorage is the durable artifact store the executor writes audio and
// cover images to. Keys are assigned by the implementation.
type ObjectStorage interface {
	// StoreBytes persists content under a fresh key with the given filename
	// suffix and content type, and returns the key plus an access URL.
	StoreBytes(ctx context.Context, content []byte, suffix, contentType string) (*StoredObject, error)

	// Open returns a reader over a stored object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object.
	Delete(ctx context.Context, key string) error
}
