package ai

import (
	"fmt"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingService creates an embedding service from settings.
// Only OpenAI serves embeddings.
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL, settings.Dimensions)
	default:
		return nil, fmt.Errorf("%w: %s does not provide embeddings", domain.ErrInvalidProvider, settings.Provider)
	}
}

// CreateLLMService creates the reasoning model from settings
func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAILLM(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.AIProviderAnthropic:
		return NewAnthropicLLM(settings.APIKey, settings.Model, settings.BaseURL)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}
