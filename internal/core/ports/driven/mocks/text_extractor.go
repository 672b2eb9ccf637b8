package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*MockTextExtractor)(nil)

// MockTextExtractor returns the stored bytes as text for allowed MIME types.
type MockTextExtractor struct {
	mu    sync.Mutex
	err   error
	calls int
}

// NewMockTextExtractor creates a new MockTextExtractor
func NewMockTextExtractor() *MockTextExtractor {
	return &MockTextExtractor{}
}

func (m *MockTextExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*domain.ExtractedText, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !domain.IsAllowedMimeType(mimeType) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mimeType)
	}
	return &domain.ExtractedText{Text: string(data), Pages: 1}, nil
}

// SetError makes every extraction fail with err
func (m *MockTextExtractor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of extractions performed
func (m *MockTextExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
