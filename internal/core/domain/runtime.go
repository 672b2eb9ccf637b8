package domain

import "sync"

// RuntimeConfig tracks which backends and AI services are wired at runtime.
// Backends are fixed at startup; AI availability may change when services are
// replaced. Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	QueueBackend   string // "redis" or "postgres"
	VectorBackend  string // "pinecone" or "pgvector"
	StorageBackend string // "local", "s3" or "gcs"

	embeddingAvailable bool
	llmAvailable       bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(queueBackend, vectorBackend, storageBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		QueueBackend:   queueBackend,
		VectorBackend:  vectorBackend,
		StorageBackend: storageBackend,
	}
}

// EmbeddingAvailable returns whether embedding service is available
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// LLMAvailable returns whether the reasoning model is available
func (c *RuntimeConfig) LLMAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llmAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetLLMAvailable updates the LLM availability flag
func (c *RuntimeConfig) SetLLMAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmAvailable = available
}

// CanRetrieveContext reports whether similar-document context can be fetched.
func (c *RuntimeConfig) CanRetrieveContext() bool {
	return c.EmbeddingAvailable()
}

// CanAnalyze reports whether analyses will come from a model rather than the fallback.
func (c *RuntimeConfig) CanAnalyze() bool {
	return c.LLMAvailable()
}
