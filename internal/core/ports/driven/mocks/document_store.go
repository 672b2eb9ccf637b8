package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/google/uuid"
)

var _ driven.DocumentStore = (*MockDocumentStore)(nil)

// MockDocumentStore is an in-memory DocumentStore with the same
// conditional-write rules as the Postgres adapter.
type MockDocumentStore struct {
	mu        sync.Mutex
	documents map[string]*domain.Document
	analyses  map[string]*domain.Analysis
	writes    map[string][]domain.DocumentStatus

	// Optional failure hooks
	TransitionErr     func(id string, from, to domain.DocumentStatus) error
	UpdateStatusErr   func(id string, status domain.DocumentStatus) error
	CreateAnalysisErr error
	GetErr            error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string]*domain.Document),
		analyses:  make(map[string]*domain.Analysis),
		writes:    make(map[string][]domain.DocumentStatus),
	}
}

func (m *MockDocumentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[doc.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

func (m *MockDocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	doc, ok := m.documents[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (m *MockDocumentStore) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	if m.UpdateStatusErr != nil {
		if err := m.UpdateStatusErr(id, status); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.UpdatedAt = time.Now()
	m.writes[id] = append(m.writes[id], status)
	return nil
}

func (m *MockDocumentStore) TransitionStatus(ctx context.Context, id string, from, to domain.DocumentStatus) error {
	if m.TransitionErr != nil {
		if err := m.TransitionErr(id, from, to); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.Status != from {
		return domain.ErrStatusConflict
	}
	doc.Status = to
	doc.UpdatedAt = time.Now()
	m.writes[id] = append(m.writes[id], to)
	return nil
}

func (m *MockDocumentStore) CreateAnalysis(ctx context.Context, documentID string, analysis *domain.Analysis) (*domain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateAnalysisErr != nil {
		return nil, m.CreateAnalysisErr
	}
	doc, ok := m.documents[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if doc.Status != domain.DocumentStatusProcessing {
		return nil, domain.ErrStatusConflict
	}
	if _, exists := m.analyses[documentID]; exists {
		return nil, domain.ErrAlreadyExists
	}

	stored := *analysis
	stored.ID = uuid.NewString()
	stored.DocumentID = documentID
	stored.CreatedAt = time.Now()
	stored.Clauses = make([]domain.Clause, len(analysis.Clauses))
	for i, c := range analysis.Clauses {
		c.Type = domain.CoerceClauseType(string(c.Type))
		stored.Clauses[i] = c
	}
	m.analyses[documentID] = &stored

	cp := stored
	return &cp, nil
}

func (m *MockDocumentStore) DeleteAnalysis(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.analyses, documentID)
	return nil
}

func (m *MockDocumentStore) ListDocuments(ctx context.Context, ownerID string) ([]*domain.DocumentSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.DocumentSummary
	for _, doc := range m.documents {
		if doc.OwnerID == ownerID {
			out = append(out, m.summary(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MockDocumentStore) GetDocumentWithAnalysis(ctx context.Context, id, ownerID string) (*domain.DocumentWithAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, nil
	}
	cp := *doc
	out := &domain.DocumentWithAnalysis{Document: &cp}
	if a, ok := m.analyses[id]; ok {
		ac := *a
		out.Analysis = &ac
	}
	return out, nil
}

func (m *MockDocumentStore) GetDocumentsByIDs(ctx context.Context, ownerID string, ids []string) ([]*domain.DocumentSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.DocumentSummary
	for _, id := range ids {
		if doc, ok := m.documents[id]; ok && doc.OwnerID == ownerID {
			out = append(out, m.summary(doc))
		}
	}
	return out, nil
}

func (m *MockDocumentStore) summary(doc *domain.Document) *domain.DocumentSummary {
	cp := *doc
	s := &domain.DocumentSummary{Document: &cp}
	if a, ok := m.analyses[doc.ID]; ok {
		s.Analysis = &domain.AnalysisHeadline{
			ID:             a.ID,
			RiskScore:      a.RiskScore,
			OverallSummary: a.OverallSummary,
			CreatedAt:      a.CreatedAt,
		}
	}
	return s
}

// Helper methods for testing

// Analysis returns the stored analysis for a document, or nil
func (m *MockDocumentStore) Analysis(documentID string) *domain.Analysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.analyses[documentID]; ok {
		cp := *a
		return &cp
	}
	return nil
}

// Status returns a document's current status
func (m *MockDocumentStore) Status(id string) domain.DocumentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.documents[id]; ok {
		return doc.Status
	}
	return ""
}

// StatusWrites returns every status written for a document, in order
func (m *MockDocumentStore) StatusWrites(id string) []domain.DocumentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DocumentStatus, len(m.writes[id]))
	copy(out, m.writes[id])
	return out
}
