package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BlobStorage = (*S3Storage)(nil)

// S3Config holds configuration for S3-compatible storage
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
}

// S3Storage stores objects in one S3 bucket.
type S3Storage struct {
	client *s3.Client
	bucket string
}

// NewS3Storage creates an S3 client. A custom endpoint switches to path-style addressing.
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket and region are required")
	}

	opts := s3.Options{
		Region: cfg.Region,
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	return &S3Storage{
		client: s3.New(opts),
		bucket: cfg.Bucket,
	}, nil
}

// Write uploads the object. The body is buffered so the request is seekable for signing.
func (s *S3Storage) Write(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read upload %s: %w", key, err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

// ReadBytes downloads the whole object.
func (s *S3Storage) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the object. S3 treats a missing key as success.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

// Ping checks the bucket is reachable.
func (s *S3Storage) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3 head bucket: %w", err)
	}
	return nil
}
