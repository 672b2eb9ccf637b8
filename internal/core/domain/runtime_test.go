package domain

import (
	"sync"
	"testing"
)

func TestNewRuntimeConfig(t *testing.T) {
	cfg := NewRuntimeConfig("redis", "pinecone", "local")

	if cfg.QueueBackend != "redis" {
		t.Errorf("expected queue backend redis, got %s", cfg.QueueBackend)
	}
	if cfg.VectorBackend != "pinecone" {
		t.Errorf("expected vector backend pinecone, got %s", cfg.VectorBackend)
	}
	if cfg.EmbeddingAvailable() {
		t.Error("expected embedding to be unavailable by default")
	}
	if cfg.CanAnalyze() {
		t.Error("expected analysis to fall back by default")
	}
}

func TestRuntimeConfig_Flags(t *testing.T) {
	cfg := NewRuntimeConfig("postgres", "pgvector", "s3")

	cfg.SetEmbeddingAvailable(true)
	cfg.SetLLMAvailable(true)

	if !cfg.CanRetrieveContext() {
		t.Error("expected context retrieval with embedding available")
	}
	if !cfg.CanAnalyze() {
		t.Error("expected analysis with LLM available")
	}

	cfg.SetLLMAvailable(false)
	if cfg.CanAnalyze() {
		t.Error("expected analysis to be unavailable after reset")
	}
}

func TestRuntimeConfig_ConcurrentAccess(t *testing.T) {
	cfg := NewRuntimeConfig("redis", "pinecone", "local")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v bool) {
			defer wg.Done()
			cfg.SetEmbeddingAvailable(v)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = cfg.EmbeddingAvailable()
		}()
	}
	wg.Wait()
}
