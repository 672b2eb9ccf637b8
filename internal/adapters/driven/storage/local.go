// Package storage implements blob storage for uploaded documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BlobStorage = (*LocalStorage)(nil)

// LocalStorage stores objects as files in one directory.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates the directory if needed.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Write stores the object through a temp file and rename.
func (s *LocalStorage) Write(ctx context.Context, key string, r io.Reader, contentType string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// ReadBytes reads the whole object.
func (s *LocalStorage) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the object.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Ping checks the directory is still there.
func (s *LocalStorage) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat upload directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *LocalStorage) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key), nil
}

// validateKey accepts flat object names only.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: invalid storage key %q", domain.ErrInvalidInput, key)
	}
	return nil
}
