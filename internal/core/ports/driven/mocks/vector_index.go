package mocks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

var _ driven.VectorIndex = (*MockVectorIndex)(nil)

// MockVectorIndex is an in-memory cosine-similarity index.
type MockVectorIndex struct {
	mu      sync.Mutex
	records map[string]domain.VectorRecord

	UpsertErr error
	QueryErr  error
	UpdateErr error
	queries   []domain.VectorFilter
}

// NewMockVectorIndex creates an empty index
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{records: make(map[string]domain.VectorRecord)}
}

func (m *MockVectorIndex) Upsert(ctx context.Context, records ...domain.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	for _, r := range records {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		r.Metadata = meta
		m.records[r.ID] = r
	}
	return nil
}

func (m *MockVectorIndex) Query(ctx context.Context, vector []float32, topK int, filter domain.VectorFilter) ([]domain.VectorMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, filter)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	var matches []domain.VectorMatch
	for _, r := range m.records {
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		matches = append(matches, domain.VectorMatch{
			ID:         r.ID,
			Similarity: domain.ClampSimilarity(cosine(vector, r.Values)),
			Metadata:   r.Metadata,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MockVectorIndex) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: vector %s", domain.ErrNotFound, id)
	}
	for k, v := range metadata {
		r.Metadata[k] = v
	}
	return nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockVectorIndex) Close() error {
	return nil
}

// Helper methods for testing

// Record returns a stored record by ID
func (m *MockVectorIndex) Record(id string) (domain.VectorRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

// Len returns the number of stored records
func (m *MockVectorIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Queries returns the filters of every query made
func (m *MockVectorIndex) Queries() []domain.VectorFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.VectorFilter, len(m.queries))
	copy(out, m.queries)
	return out
}

func matchesFilter(meta map[string]any, filter domain.VectorFilter) bool {
	for k, want := range filter {
		if got, ok := meta[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
