package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BlobStorage = (*GCSStorage)(nil)

// GCSStorage stores objects in one Cloud Storage bucket.
type GCSStorage struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSStorage uses application default credentials.
func NewGCSStorage(ctx context.Context, bucket string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStorage{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
	}, nil
}

// Write uploads the object, replacing any existing one.
func (s *GCSStorage) Write(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs finalize %s: %w", key, err)
	}
	return nil
}

// ReadBytes downloads the whole object.
func (s *GCSStorage) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	rc, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("gcs open %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the object.
func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", key, err)
	}
	return nil
}

// Ping reads the bucket attributes.
func (s *GCSStorage) Ping(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %s: %w", s.name, err)
	}
	return nil
}

// Close releases the client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
