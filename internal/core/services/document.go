package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// DefaultMaxFileSize is the upload limit when none is configured (10 MiB)
const DefaultMaxFileSize int64 = 10 << 20

// SimilarViewSize is how many documents the similar-documents view returns
const SimilarViewSize = 5

// documentService implements the DocumentService interface
type documentService struct {
	store       driven.DocumentStore
	blobs       driven.BlobStorage
	extractor   driven.TextExtractor
	retriever   *ContextRetriever
	pipeline    driving.PipelineService
	maxFileSize int64
	timeout     time.Duration
	logger      *slog.Logger
}

// DocumentServiceConfig holds dependencies for the document service.
type DocumentServiceConfig struct {
	Store       driven.DocumentStore
	Blobs       driven.BlobStorage
	Extractor   driven.TextExtractor
	Retriever   *ContextRetriever
	Pipeline    driving.PipelineService
	MaxFileSize int64
	// Timeout bounds blob reads and extraction in FindSimilar
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(cfg DocumentServiceConfig) driving.DocumentService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &documentService{
		store:       cfg.Store,
		blobs:       cfg.Blobs,
		extractor:   cfg.Extractor,
		retriever:   cfg.Retriever,
		pipeline:    cfg.Pipeline,
		maxFileSize: maxSize,
		timeout:     timeout,
		logger:      logger,
	}
}

// Upload stores the file, records a PENDING document and submits it.
// A failed submission is logged; the document stays PENDING and can be
// re-triggered.
func (s *documentService) Upload(ctx context.Context, auth *domain.AuthContext, req driving.UploadRequest) (*domain.Document, error) {
	if auth == nil || auth.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if req.Body == nil || req.OriginalName == "" {
		return nil, fmt.Errorf("%w: no file uploaded", domain.ErrInvalidInput)
	}
	if !domain.IsAllowedMimeType(req.MimeType) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, req.MimeType)
	}
	if req.Size > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrFileTooLarge, req.Size, s.maxFileSize)
	}

	doc := domain.NewDocument(auth.UserID, auth.OrganizationID, req.OriginalName, req.MimeType, req.Size)

	if err := s.blobs.Write(ctx, doc.StorageKey, req.Body, doc.MimeType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		if derr := s.blobs.Delete(ctx, doc.StorageKey); derr != nil {
			s.logger.Warn("failed to remove orphaned upload", "key", doc.StorageKey, "error", derr)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.logger.Info("document uploaded",
		"document_id", doc.ID,
		"user_id", doc.OwnerID,
		"mime_type", doc.MimeType,
		"size", doc.Size,
	)

	if err := s.pipeline.SubmitForProcessing(ctx, doc.ID); err != nil {
		s.logger.Error("failed to submit document for processing", "document_id", doc.ID, "error", err)
	}

	return doc, nil
}

// List returns the caller's documents
func (s *documentService) List(ctx context.Context, auth *domain.AuthContext) ([]*domain.DocumentSummary, error) {
	if auth == nil || auth.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	docs, err := s.store.ListDocuments(ctx, auth.UserID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*domain.DocumentSummary{}
	}
	return docs, nil
}

// Get returns one of the caller's documents with its analysis
func (s *documentService) Get(ctx context.Context, auth *domain.AuthContext, id string) (*domain.DocumentWithAnalysis, error) {
	if auth == nil || auth.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	doc, err := s.store.GetDocumentWithAnalysis(ctx, id, auth.UserID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// FindSimilar re-extracts the document and looks up the caller's most
// similar documents. Retrieval failures yield an empty list.
func (s *documentService) FindSimilar(ctx context.Context, auth *domain.AuthContext, id string) ([]*driving.SimilarDocument, error) {
	doc, err := s.Get(ctx, auth, id)
	if err != nil {
		return nil, err
	}

	readCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.blobs.ReadBytes(readCtx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read document file: %w", err)
	}
	extracted, err := s.extractor.Extract(readCtx, data, doc.MimeType)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if extracted.IsBlank() {
		return []*driving.SimilarDocument{}, nil
	}

	matches := s.retriever.FindSimilar(ctx, extracted.Text, auth.UserID, SimilarViewSize, doc.ID)
	if len(matches) == 0 {
		return []*driving.SimilarDocument{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	summaries, err := s.store.GetDocumentsByIDs(ctx, auth.UserID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.DocumentSummary, len(summaries))
	for _, sum := range summaries {
		byID[sum.ID] = sum
	}

	// keep match order; drop vectors whose document no longer exists
	result := make([]*driving.SimilarDocument, 0, len(matches))
	for _, m := range matches {
		sum, ok := byID[m.ID]
		if !ok {
			continue
		}
		result = append(result, &driving.SimilarDocument{
			DocumentSummary: sum,
			Similarity:      similarityPercent(m.Similarity),
		})
	}
	return result, nil
}

// FindSimilarClauses looks up clause n of the document and returns the
// caller's closest clauses of the same type, excluding the clause itself.
func (s *documentService) FindSimilarClauses(ctx context.Context, auth *domain.AuthContext, id string, n int) ([]*driving.SimilarClause, error) {
	doc, err := s.Get(ctx, auth, id)
	if err != nil {
		return nil, err
	}
	if doc.Analysis == nil || n < 0 || n >= len(doc.Analysis.Clauses) {
		return nil, fmt.Errorf("%w: %s clause %d", domain.ErrClauseNotFound, id, n)
	}
	clause := doc.Analysis.Clauses[n]

	matches := s.retriever.FindSimilarClauses(ctx, clause.Content, clause.Type, auth.UserID, SimilarViewSize+1)
	self := domain.ClauseVectorID(doc.ID, n)

	result := make([]*driving.SimilarClause, 0, len(matches))
	for _, m := range matches {
		if m.ID == self {
			continue
		}
		if len(result) == SimilarViewSize {
			break
		}
		result = append(result, &driving.SimilarClause{
			DocumentID:  metaString(m.Metadata, domain.MetaDocumentID),
			Type:        domain.CoerceClauseType(metaString(m.Metadata, domain.MetaClauseType)),
			Content:     metaString(m.Metadata, domain.MetaContent),
			RiskLevel:   metaString(m.Metadata, domain.MetaRiskLevel),
			Explanation: metaString(m.Metadata, domain.MetaExplanation),
			Similarity:  similarityPercent(m.Similarity),
		})
	}
	return result, nil
}

func metaString(meta map[string]any, key string) string {
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}
