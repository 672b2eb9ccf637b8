// Package runtime holds the process-wide registry of AI clients and the
// vector index shared by the pipeline stages.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// DefaultProbeTimeout bounds the embedding health check during Configure
const DefaultProbeTimeout = 10 * time.Second

// Services owns the embedding service, the reasoning model and the vector
// index, and closes them on shutdown. Any of them may be nil, in which case
// the pipeline takes its degraded path. Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	config *domain.RuntimeConfig

	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
	vectorIndex      driven.VectorIndex
}

// AIConfig selects the AI providers for Configure. Nil or unconfigured
// settings leave that service unset.
type AIConfig struct {
	Embedding    *domain.EmbeddingSettings
	LLM          *domain.LLMSettings
	ProbeTimeout time.Duration
}

// Snapshot is a point-in-time view of what is wired
type Snapshot struct {
	QueueBackend   string
	VectorBackend  string
	StorageBackend string
	Embedding      bool
	LLM            bool
	VectorIndex    bool
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the current reasoning model (may be nil)
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// VectorIndex returns the vector index (may be nil)
func (s *Services) VectorIndex() driven.VectorIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorIndex
}

// SetVectorIndex registers the vector index, closing a different previous one.
func (s *Services) SetVectorIndex(idx driven.VectorIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vectorIndex != nil && s.vectorIndex != idx {
		_ = s.vectorIndex.Close()
	}
	s.vectorIndex = idx
}

// SetEmbeddingService replaces the embedding service, closing the old one.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}
	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetLLMService replaces the reasoning model, closing the old one.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llmService != nil && s.llmService != svc {
		_ = s.llmService.Close()
	}
	s.llmService = svc
	s.config.SetLLMAvailable(svc != nil)
}

// Configure builds the AI services through factory and registers them.
//
// The embedding service must pass a health check to be registered, since a
// dead embedder would slow every run down to its timeout. The reasoning model
// is registered without a probe; per-run failures fall back.
//
// The returned error joins every provider problem. Services that could be
// built stay registered.
func (s *Services) Configure(ctx context.Context, factory driven.AIServiceFactory, cfg AIConfig) error {
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}

	var errs []error

	embedding, err := factory.CreateEmbeddingService(cfg.Embedding)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("embedding: %w", err))
	case embedding != nil:
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := embedding.HealthCheck(probeCtx)
		cancel()
		if err != nil {
			_ = embedding.Close()
			errs = append(errs, fmt.Errorf("embedding health check: %w", err))
		} else {
			s.SetEmbeddingService(embedding)
		}
	}

	llm, err := factory.CreateLLMService(cfg.LLM)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("analysis model: %w", err))
	case llm != nil:
		s.SetLLMService(llm)
	}

	return errors.Join(errs...)
}

// Snapshot reports the wired backends and services
func (s *Services) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		QueueBackend:   s.config.QueueBackend,
		VectorBackend:  s.config.VectorBackend,
		StorageBackend: s.config.StorageBackend,
		Embedding:      s.embeddingService != nil,
		LLM:            s.llmService != nil,
		VectorIndex:    s.vectorIndex != nil,
	}
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.embeddingService != nil {
		errs = append(errs, s.embeddingService.Close())
		s.embeddingService = nil
	}
	if s.llmService != nil {
		errs = append(errs, s.llmService.Close())
		s.llmService = nil
	}
	if s.vectorIndex != nil {
		errs = append(errs, s.vectorIndex.Close())
		s.vectorIndex = nil
	}

	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)

	return errors.Join(errs...)
}
