package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/pgvector/pgvector-go"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements driven.VectorIndex on a pgvector table.
// Similarity is 1 - cosine distance, clamped to [0,1].
type VectorIndex struct {
	db         *DB
	dimensions int
}

// NewVectorIndex creates a pgvector-backed index for vectors of the given size
func NewVectorIndex(db *DB, dimensions int) *VectorIndex {
	return &VectorIndex{db: db, dimensions: dimensions}
}

// InitSchema creates the extension, table and HNSW index. Idempotent.
func (v *VectorIndex) InitSchema(ctx context.Context) error {
	if v.dimensions <= 0 {
		return errors.New("vector dimensions must be positive")
	}

	ddl := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS document_vectors (
			id         TEXT PRIMARY KEY,
			embedding  vector(%d) NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_document_vectors_embedding
			ON document_vectors USING hnsw (embedding vector_cosine_ops);
		CREATE INDEX IF NOT EXISTS idx_document_vectors_metadata
			ON document_vectors USING gin (metadata jsonb_path_ops);
	`, v.dimensions)

	if err := v.db.migrate(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize vector schema: %w", err)
	}
	return nil
}

// Upsert inserts or replaces entries in one transaction
func (v *VectorIndex) Upsert(ctx context.Context, records ...domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	return v.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO document_vectors (id, embedding, metadata, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				metadata = EXCLUDED.metadata,
				updated_at = EXCLUDED.updated_at
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if len(rec.Values) != v.dimensions {
				return fmt.Errorf("vector %s has %d dimensions, want %d: %w",
					rec.ID, len(rec.Values), v.dimensions, domain.ErrInvalidInput)
			}
			metadata, err := marshalMetadata(rec.Metadata)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, rec.ID, pgvector.NewVector(rec.Values), metadata); err != nil {
				return fmt.Errorf("upsert vector %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

// Query ranks entries whose metadata contains every filter pair
func (v *VectorIndex) Query(ctx context.Context, vector []float32, topK int, filter domain.VectorFilter) ([]domain.VectorMatch, error) {
	if topK <= 0 {
		return []domain.VectorMatch{}, nil
	}

	filterJSON, err := marshalMetadata(filter)
	if err != nil {
		return nil, err
	}

	rows, err := v.db.QueryContext(ctx, `
		SELECT id, metadata, embedding <=> $1 AS distance
		FROM document_vectors
		WHERE metadata @> $2
		ORDER BY distance ASC
		LIMIT $3
	`, pgvector.NewVector(vector), filterJSON, topK)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	matches := []domain.VectorMatch{}
	for rows.Next() {
		var m domain.VectorMatch
		var metadata []byte
		var distance float64
		if err := rows.Scan(&m.ID, &metadata, &distance); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		m.Similarity = domain.ClampSimilarity(1 - distance)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector matches: %w", err)
	}
	return matches, nil
}

// UpdateMetadata merges fields into the stored metadata
func (v *VectorIndex) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	patch, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	result, err := v.db.ExecContext(ctx, `
		UPDATE document_vectors SET metadata = metadata || $2, updated_at = NOW()
		WHERE id = $1
	`, id, patch)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return requireRow(result)
}

// HealthCheck verifies the pgvector extension is installed
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	var installed bool
	err := v.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&installed)
	if err != nil {
		return fmt.Errorf("check vector extension: %w", err)
	}
	if !installed {
		return errors.New("pgvector extension not installed")
	}
	return nil
}

// Close is a no-op (db connection managed externally)
func (v *VectorIndex) Close() error {
	return nil
}

// marshalMetadata encodes metadata for jsonb parameters
func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		return nil, fmt.Errorf("marshal metadata (%s): %w", strings.Join(keys, ","), err)
	}
	return b, nil
}
