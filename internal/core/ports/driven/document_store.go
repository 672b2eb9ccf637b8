package driven

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// DocumentStore is the persistence gateway for documents and their analyses (PostgreSQL).
type DocumentStore interface {
	// CreateDocument inserts a new document record
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns nil, nil if the document does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// UpdateDocumentStatus unconditionally overwrites the status.
	// Returns domain.ErrNotFound if the document does not exist.
	UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error

	// TransitionStatus moves a document from one status to another in a single
	// conditional write. Returns domain.ErrStatusConflict if the current status
	// is not from, and domain.ErrNotFound if the document does not exist.
	TransitionStatus(ctx context.Context, id string, from, to domain.DocumentStatus) error

	// CreateAnalysis persists an analysis with all of its child rows in one
	// transaction. The document must be PROCESSING and must not already have an
	// analysis. The stored analysis is returned with IDs assigned.
	CreateAnalysis(ctx context.Context, documentID string, analysis *domain.Analysis) (*domain.Analysis, error)

	// DeleteAnalysis removes a document's analysis and its child rows.
	// Used to compensate when the COMPLETED transition cannot be written.
	DeleteAnalysis(ctx context.Context, documentID string) error

	// ListDocuments returns an owner's documents, newest first
	ListDocuments(ctx context.Context, ownerID string) ([]*domain.DocumentSummary, error)

	// GetDocumentWithAnalysis returns a document and its analysis, scoped to the owner.
	// Returns nil, nil if the document does not exist or belongs to someone else.
	GetDocumentWithAnalysis(ctx context.Context, id, ownerID string) (*domain.DocumentWithAnalysis, error)

	// GetDocumentsByIDs returns the owner's documents among ids, with analysis headlines
	GetDocumentsByIDs(ctx context.Context, ownerID string, ids []string) ([]*domain.DocumentSummary, error)
}
