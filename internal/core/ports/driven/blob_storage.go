package driven

import (
	"context"
	"io"
)

// BlobStorage holds uploaded document bytes.
// Implementations: local disk, S3, or GCS.
type BlobStorage interface {
	// Write stores the object under key, replacing any existing object
	Write(ctx context.Context, key string, r io.Reader, contentType string) error

	// ReadBytes returns the object's contents.
	// Returns domain.ErrNotFound if no object exists under key.
	ReadBytes(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error
}
