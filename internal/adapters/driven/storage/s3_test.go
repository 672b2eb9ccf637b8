package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// fakeS3 serves path-style object requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	case http.MethodDelete:
		delete(f.objects, path)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	s, err := NewS3Storage(S3Config{
		Bucket:          "uploads",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s, fake
}

func TestNewS3Storage_Validation(t *testing.T) {
	if _, err := NewS3Storage(S3Config{Region: "us-east-1"}); err == nil {
		t.Error("expected error for missing bucket")
	}
	if _, err := NewS3Storage(S3Config{Bucket: "b"}); err == nil {
		t.Error("expected error for missing region")
	}
}

func TestS3Storage_WriteRead(t *testing.T) {
	s, fake := newTestS3(t)
	ctx := context.Background()

	if err := s.Write(ctx, "document-1.pdf", strings.NewReader("%PDF-1.4"), domain.MimeTypePDF); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, ok := fake.objects["uploads/document-1.pdf"]; !ok {
		t.Fatalf("expected path-style object, have %v", fake.objects)
	}

	data, err := s.ReadBytes(ctx, "document-1.pdf")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestS3Storage_ReadMissing(t *testing.T) {
	s, _ := newTestS3(t)

	_, err := s.ReadBytes(context.Background(), "document-missing.pdf")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestS3Storage_DeleteAndPing(t *testing.T) {
	s, fake := newTestS3(t)
	ctx := context.Background()

	fake.objects["uploads/document-3.pdf"] = []byte("x")
	if err := s.Delete(ctx, "document-3.pdf"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := fake.objects["uploads/document-3.pdf"]; ok {
		t.Error("expected object removed")
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
