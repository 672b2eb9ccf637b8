package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

var _ driven.LLMService = (*MockLLMService)(nil)

// MockLLMService returns a canned response and records requests.
type MockLLMService struct {
	mu       sync.Mutex
	response string
	err      error
	delay    time.Duration
	requests []domain.CompletionRequest
}

// NewMockLLMService creates a mock that replies with response
func NewMockLLMService(response string) *MockLLMService {
	return &MockLLMService{response: response}
}

func (m *MockLLMService) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	response, err, delay := m.response, m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return response, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockLLMService) SetResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
}

func (m *MockLLMService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes Complete wait before replying, honouring the context
func (m *MockLLMService) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Requests returns the recorded requests
func (m *MockLLMService) Requests() []domain.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
