package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// UploadRequest describes one uploaded file
type UploadRequest struct {
	OriginalName string
	MimeType     string
	Size         int64
	Body         io.Reader
}

// SimilarDocument is one entry of the similar-documents view
type SimilarDocument struct {
	*domain.DocumentSummary
	// Similarity is an integer percentage
	Similarity int `json:"similarity"`
}

// SimilarClause is one entry of the similar-clauses view
type SimilarClause struct {
	DocumentID  string            `json:"documentId"`
	Type        domain.ClauseType `json:"type"`
	Content     string            `json:"content"`
	RiskLevel   string            `json:"riskLevel"`
	Explanation string            `json:"explanation"`
	// Similarity is an integer percentage
	Similarity int `json:"similarity"`
}

// DocumentService exposes uploads and document read models
type DocumentService interface {
	// Upload stores the file, records a PENDING document and submits it for processing
	Upload(ctx context.Context, auth *domain.AuthContext, req UploadRequest) (*domain.Document, error)

	// List returns the caller's documents, newest first, with analysis headlines
	List(ctx context.Context, auth *domain.AuthContext) ([]*domain.DocumentSummary, error)

	// Get returns a document with its full analysis.
	// Returns domain.ErrNotFound if the caller does not own it.
	Get(ctx context.Context, auth *domain.AuthContext, id string) (*domain.DocumentWithAnalysis, error)

	// FindSimilar returns up to five of the caller's documents most similar to id
	FindSimilar(ctx context.Context, auth *domain.AuthContext, id string) ([]*SimilarDocument, error)

	// FindSimilarClauses returns up to five of the caller's clauses of the same
	// type as clause n of document id. Returns domain.ErrClauseNotFound when the
	// document has no such clause.
	FindSimilarClauses(ctx context.Context, auth *domain.AuthContext, id string, n int) ([]*SimilarClause, error)
}
