package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/runtime"
)

// ContextRetriever finds previously indexed documents and clauses similar to
// new text. Every failure degrades to an empty result.
type ContextRetriever struct {
	services *runtime.Services
	timeout  time.Duration
	logger   *slog.Logger
}

// ContextRetrieverConfig holds dependencies for ContextRetriever.
type ContextRetrieverConfig struct {
	Services *runtime.Services
	// Timeout bounds the embed + query round trip. Zero means no extra bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewContextRetriever creates a new context retriever.
func NewContextRetriever(cfg ContextRetrieverConfig) *ContextRetriever {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextRetriever{
		services: cfg.Services,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// FindSimilar returns up to topK of the owner's documents closest to text,
// excluding excludeID. The result is never nil.
func (r *ContextRetriever) FindSimilar(ctx context.Context, text, ownerID string, topK int, excludeID string) []domain.VectorMatch {
	if topK <= 0 {
		return []domain.VectorMatch{}
	}

	filter := domain.VectorFilter{
		domain.MetaUserID: ownerID,
		domain.MetaType:   domain.VectorTypeDocument,
	}
	// One extra so dropping the excluded document still leaves topK
	matches, err := r.query(ctx, text, topK+1, filter)
	if err != nil {
		r.logger.Warn("similar document retrieval failed",
			"owner_id", ownerID,
			"exclude_id", excludeID,
			"error", err,
		)
		return []domain.VectorMatch{}
	}

	out := make([]domain.VectorMatch, 0, topK)
	for _, m := range matches {
		if m.ID == excludeID {
			continue
		}
		out = append(out, m)
		if len(out) == topK {
			break
		}
	}
	return out
}

// FindSimilarClauses returns up to topK of the owner's clauses of the same type.
func (r *ContextRetriever) FindSimilarClauses(ctx context.Context, clauseText string, clauseType domain.ClauseType, ownerID string, topK int) []domain.VectorMatch {
	if topK <= 0 {
		return []domain.VectorMatch{}
	}

	filter := domain.VectorFilter{
		domain.MetaUserID:     ownerID,
		domain.MetaType:       domain.VectorTypeClause,
		domain.MetaClauseType: string(domain.CoerceClauseType(string(clauseType))),
	}
	matches, err := r.query(ctx, clauseText, topK, filter)
	if err != nil {
		r.logger.Warn("similar clause retrieval failed",
			"owner_id", ownerID,
			"clause_type", clauseType,
			"error", err,
		)
		return []domain.VectorMatch{}
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func (r *ContextRetriever) query(ctx context.Context, text string, topK int, filter domain.VectorFilter) (matches []domain.VectorMatch, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrRetrievalFailed, p)
		}
	}()

	embedder := r.services.EmbeddingService()
	index := r.services.VectorIndex()
	if embedder == nil || index == nil {
		return nil, fmt.Errorf("%w: embedding or vector index not configured", domain.ErrRetrievalFailed)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vector, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, err)
	}
	matches, err = index.Query(ctx, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalFailed, err)
	}
	return matches, nil
}
