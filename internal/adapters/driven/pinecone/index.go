// Package pinecone implements the vector index against the Pinecone REST data plane.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

// DefaultAPIVersion is the data plane API version sent with every request
const DefaultAPIVersion = "2025-10"

// Config holds configuration for a Pinecone index client
type Config struct {
	APIKey     string
	APIVersion string
	// Host is the index data plane host, with or without scheme
	Host      string
	Namespace string
	Timeout   time.Duration
}

// Index is a VectorIndex backed by one Pinecone index
type Index struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// NewIndex creates a Pinecone index client
func NewIndex(cfg Config) (*Index, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing Pinecone API key")
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, fmt.Errorf("missing Pinecone index host")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Index{
		cfg:     cfg,
		baseURL: host,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type upsertRequest struct {
	Vectors   []domain.VectorRecord `json:"vectors"`
	Namespace string                `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int64 `json:"upsertedCount"`
}

// Upsert inserts or replaces vectors by ID
func (i *Index) Upsert(ctx context.Context, records ...domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	req := upsertRequest{Vectors: records, Namespace: i.cfg.Namespace}
	var out upsertResponse
	if err := i.doJSON(ctx, http.MethodPost, "/vectors/upsert", req, &out); err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	return nil
}

type queryRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type queryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type queryResponse struct {
	Matches []queryMatch `json:"matches"`
}

// Query returns the nearest vectors whose metadata equals every filter key
func (i *Index) Query(ctx context.Context, vector []float32, topK int, filter domain.VectorFilter) ([]domain.VectorMatch, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("pinecone query: query vector required")
	}
	if topK <= 0 {
		topK = 10
	}

	req := queryRequest{
		Namespace:       i.cfg.Namespace,
		Vector:          vector,
		TopK:            topK,
		Filter:          equalityFilter(filter),
		IncludeMetadata: true,
	}
	var out queryResponse
	if err := i.doJSON(ctx, http.MethodPost, "/query", req, &out); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}

	matches := make([]domain.VectorMatch, 0, len(out.Matches))
	for _, m := range out.Matches {
		matches = append(matches, domain.VectorMatch{
			ID:         m.ID,
			Similarity: domain.ClampSimilarity(m.Score),
			Metadata:   m.Metadata,
		})
	}
	return matches, nil
}

type updateRequest struct {
	ID          string         `json:"id"`
	SetMetadata map[string]any `json:"setMetadata"`
	Namespace   string         `json:"namespace,omitempty"`
}

// UpdateMetadata merges fields into a vector's metadata
func (i *Index) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	if len(metadata) == 0 {
		return nil
	}
	req := updateRequest{ID: id, SetMetadata: metadata, Namespace: i.cfg.Namespace}
	if err := i.doJSON(ctx, http.MethodPost, "/vectors/update", req, nil); err != nil {
		return fmt.Errorf("pinecone update: %w", err)
	}
	return nil
}

// HealthCheck calls describe_index_stats
func (i *Index) HealthCheck(ctx context.Context) error {
	if err := i.doJSON(ctx, http.MethodPost, "/describe_index_stats", map[string]any{}, nil); err != nil {
		return fmt.Errorf("pinecone health check: %w", err)
	}
	return nil
}

// Close releases idle connections
func (i *Index) Close() error {
	i.http.CloseIdleConnections()
	return nil
}

// equalityFilter maps an equality filter to Pinecone's $eq operator form
func equalityFilter(filter domain.VectorFilter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		out[k] = map[string]any{"$eq": v}
	}
	return out
}

func (i *Index) doJSON(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, i.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", i.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-Api-Version", i.cfg.APIVersion)

	resp, err := i.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
