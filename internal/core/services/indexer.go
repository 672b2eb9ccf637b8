package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/runtime"
)

// Indexer writes document and clause vectors. Its methods return errors, and
// the pipeline runs each one as a best-effort step.
type Indexer struct {
	services *runtime.Services
}

// NewIndexer creates an indexer over the registered embedding service and vector index.
func NewIndexer(services *runtime.Services) *Indexer {
	return &Indexer{services: services}
}

// StoreDocument embeds the document text and upserts it under the document ID.
func (i *Indexer) StoreDocument(ctx context.Context, doc *domain.Document, text, documentType string) error {
	embedder, index := i.services.EmbeddingService(), i.services.VectorIndex()
	if embedder == nil || index == nil {
		return fmt.Errorf("%w: embedding or vector index not configured", domain.ErrEmbeddingUnavailable)
	}

	vector, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	metadata := map[string]any{
		domain.MetaType:         domain.VectorTypeDocument,
		domain.MetaUserID:       doc.OwnerID,
		domain.MetaDocumentType: documentType,
		domain.MetaFileName:     doc.OriginalName,
		domain.MetaCreatedAt:    doc.CreatedAt.UTC().Format(time.RFC3339),
		domain.MetaTextPreview:  domain.Preview(text, domain.TextPreviewLength),
	}
	if doc.OrganizationID != "" {
		metadata[domain.MetaOrganizationID] = doc.OrganizationID
	}

	return index.Upsert(ctx, domain.VectorRecord{
		ID:       doc.ID,
		Values:   vector,
		Metadata: metadata,
	})
}

// StoreClauses embeds every clause in one batch and upserts them.
func (i *Indexer) StoreClauses(ctx context.Context, doc *domain.Document, clauses []domain.Clause) error {
	if len(clauses) == 0 {
		return nil
	}
	embedder, index := i.services.EmbeddingService(), i.services.VectorIndex()
	if embedder == nil || index == nil {
		return fmt.Errorf("%w: embedding or vector index not configured", domain.ErrEmbeddingUnavailable)
	}

	texts := make([]string, len(clauses))
	for n, c := range clauses {
		texts[n] = c.Content
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(clauses) {
		return fmt.Errorf("%w: got %d embeddings for %d clauses", domain.ErrEmbeddingUnavailable, len(vectors), len(clauses))
	}

	records := make([]domain.VectorRecord, len(clauses))
	for n, c := range clauses {
		records[n] = domain.VectorRecord{
			ID:     domain.ClauseVectorID(doc.ID, n),
			Values: vectors[n],
			Metadata: map[string]any{
				domain.MetaType:        domain.VectorTypeClause,
				domain.MetaDocumentID:  doc.ID,
				domain.MetaUserID:      doc.OwnerID,
				domain.MetaClauseType:  string(domain.CoerceClauseType(string(c.Type))),
				domain.MetaContent:     c.Content,
				domain.MetaRiskLevel:   string(c.RiskLevel),
				domain.MetaSuggestions: c.Suggestions,
				domain.MetaExplanation: c.Explanation,
			},
		}
	}
	return index.Upsert(ctx, records...)
}

// MarkAnalyzed merges the analysis outcome into the document vector's metadata.
func (i *Indexer) MarkAnalyzed(ctx context.Context, documentID string, analysis *domain.Analysis) error {
	index := i.services.VectorIndex()
	if index == nil {
		return fmt.Errorf("%w: vector index not configured", domain.ErrEmbeddingUnavailable)
	}

	return index.UpdateMetadata(ctx, documentID, map[string]any{
		domain.MetaRiskScore:    analysis.RiskScore,
		domain.MetaKeyIssues:    analysis.KeyIssues(),
		domain.MetaAnalyzed:     true,
		domain.MetaAnalysisDate: time.Now().UTC().Format(time.RFC3339),
	})
}
