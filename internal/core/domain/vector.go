package domain

import "fmt"

// Vector entry types stored under MetaType
const (
	VectorTypeDocument = "document"
	VectorTypeClause   = "clause"
)

// Metadata keys written to the vector index
const (
	MetaType           = "type"
	MetaUserID         = "userId"
	MetaOrganizationID = "organizationId"
	MetaDocumentID     = "documentId"
	MetaDocumentType   = "documentType"
	MetaFileName       = "fileName"
	MetaCreatedAt      = "createdAt"
	MetaTextPreview    = "textPreview"
	MetaRiskScore      = "riskScore"
	MetaKeyIssues      = "keyIssues"
	MetaAnalyzed       = "analyzed"
	MetaAnalysisDate   = "analysisDate"
	MetaClauseType     = "clauseType"
	MetaContent        = "content"
	MetaRiskLevel      = "riskLevel"
	MetaSuggestions    = "suggestions"
	MetaExplanation    = "explanation"
)

// TextPreviewLength bounds the text preview stored with document vectors
const TextPreviewLength = 200

// VectorRecord is an embedding plus its metadata, keyed by ID
type VectorRecord struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VectorMatch is one ranked query result. Similarity is in [0,1], higher is closer.
type VectorMatch struct {
	ID         string         `json:"id"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// VectorFilter restricts a query to entries whose metadata equals every key.
type VectorFilter map[string]any

// ClauseVectorID is the vector id of the i-th clause of a document.
func ClauseVectorID(documentID string, i int) string {
	return fmt.Sprintf("%s-clause-%d", documentID, i)
}

// ClampSimilarity bounds a raw index score to [0,1].
func ClampSimilarity(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// MetaString reads a string metadata field, returning "" when absent.
func (m VectorMatch) MetaString(key string) string {
	if v, ok := m.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetaStrings reads a list metadata field. Index backends decode JSON arrays
// as []any, so both shapes are accepted.
func (m VectorMatch) MetaStrings(key string) []string {
	switch v := m.Metadata[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// MetaNumber reads a numeric metadata field.
func (m VectorMatch) MetaNumber(key string) (float64, bool) {
	switch v := m.Metadata[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
