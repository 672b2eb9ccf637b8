package driven

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// VectorIndex stores embeddings and answers nearest-neighbour queries.
// Implementations: Pinecone (managed) or pgvector (self-hosted).
type VectorIndex interface {
	// Upsert inserts or replaces entries by ID
	Upsert(ctx context.Context, records ...domain.VectorRecord) error

	// Query returns up to topK entries matching every filter key, most similar first.
	// Similarity is normalised to [0,1].
	Query(ctx context.Context, vector []float32, topK int, filter domain.VectorFilter) ([]domain.VectorMatch, error)

	// UpdateMetadata merges fields into an entry's metadata without touching its vector
	UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error

	// HealthCheck verifies the index is reachable
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the index client
	Close() error
}
