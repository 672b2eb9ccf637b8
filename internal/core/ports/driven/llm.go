package driven

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// LLMService provides the reasoning model used for document analysis
type LLMService interface {
	// Complete sends a single-turn request and returns the raw text response
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
