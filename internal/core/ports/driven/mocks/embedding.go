package mocks

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*MockEmbeddingService)(nil)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Embeddings are deterministic per input text.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	failNext   bool
	err        error
	calls      int
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := m.nextErr(); err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := m.nextErr(); err != nil {
		return nil, err
	}
	return m.generateEmbedding(query), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

func (m *MockEmbeddingService) nextErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	if m.failNext {
		m.failNext = false
		return context.DeadlineExceeded
	}
	return nil
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// Helper methods for testing

func (m *MockEmbeddingService) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// SetError makes every call fail with err until cleared with nil
func (m *MockEmbeddingService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.dimensions = dim
}

// Calls returns the number of embedding requests made
func (m *MockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
