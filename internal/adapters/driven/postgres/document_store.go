package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `d.id, d.user_id, d.organization_id, d.original_name, d.storage_key,
	d.mime_type, d.file_size, d.status, d.created_at, d.updated_at`

// CreateDocument inserts a new document record
func (s *DocumentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, user_id, organization_id, original_name, storage_key, mime_type, file_size, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.OwnerID,
		nullString(doc.OrganizationID),
		doc.OriginalName,
		doc.StorageKey,
		doc.MimeType,
		doc.Size,
		doc.Status,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID. Returns nil, nil when absent.
func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents d WHERE d.id = $1`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// UpdateDocumentStatus unconditionally overwrites a document's status
func (s *DocumentStore) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(result)
}

// TransitionStatus is a single-row compare-and-set on the status column.
func (s *DocumentStore) TransitionStatus(ctx context.Context, id string, from, to domain.DocumentStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now(), id, from,
	)
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	// Distinguish a missing row from a status mismatch
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check document: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStatusConflict
}

// CreateAnalysis writes the analysis and every child row in one transaction.
// The document row is locked for the duration and must be PROCESSING.
func (s *DocumentStore) CreateAnalysis(ctx context.Context, documentID string, analysis *domain.Analysis) (*domain.Analysis, error) {
	stored := *analysis
	stored.Normalize()
	stored.ID = uuid.NewString()
	stored.DocumentID = documentID
	stored.CreatedAt = time.Now()
	stored.RiskFactors = append([]domain.RiskFactor(nil), stored.RiskFactors...)
	stored.Recommendations = append([]domain.Recommendation(nil), stored.Recommendations...)
	stored.Clauses = append([]domain.Clause(nil), stored.Clauses...)

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var status domain.DocumentStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1 FOR UPDATE`, documentID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock document: %w", err)
		}
		if status != domain.DocumentStatusProcessing {
			return fmt.Errorf("document is %s: %w", status, domain.ErrStatusConflict)
		}

		keyTerms, err := json.Marshal(stored.KeyTerms)
		if err != nil {
			return fmt.Errorf("marshal key terms: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO analyses (id, document_id, risk_score, overall_summary, plain_english, key_terms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, stored.ID, documentID, stored.RiskScore, stored.OverallSummary, stored.PlainEnglish, keyTerms, stored.CreatedAt)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("analysis exists: %w", domain.ErrAlreadyExists)
			}
			return fmt.Errorf("insert analysis: %w", err)
		}

		for i := range stored.RiskFactors {
			rf := &stored.RiskFactors[i]
			rf.ID = uuid.NewString()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO risk_factors (id, analysis_id, position, factor, severity, explanation)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, rf.ID, stored.ID, i, rf.Factor, domain.ParseSeverity(string(rf.Severity)), rf.Explanation)
			if err != nil {
				return fmt.Errorf("insert risk factor %d: %w", i, err)
			}
		}

		for i := range stored.Recommendations {
			rec := &stored.Recommendations[i]
			rec.ID = uuid.NewString()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO recommendations (id, analysis_id, position, category, suggestion, priority)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, rec.ID, stored.ID, i, rec.Category, rec.Suggestion, domain.ParsePriority(string(rec.Priority)))
			if err != nil {
				return fmt.Errorf("insert recommendation %d: %w", i, err)
			}
		}

		for i := range stored.Clauses {
			c := &stored.Clauses[i]
			c.ID = uuid.NewString()
			suggestions, err := json.Marshal(c.Suggestions)
			if err != nil {
				return fmt.Errorf("marshal clause suggestions: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO clauses (id, analysis_id, position, type, content, risk_level, explanation, suggestions, page, section)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, c.ID, stored.ID, i, domain.CoerceClauseType(string(c.Type)), c.Content, c.RiskLevel,
				c.Explanation, suggestions, c.Position.Page, c.Position.Section)
			if err != nil {
				return fmt.Errorf("insert clause %d: %w", i, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}
	return &stored, nil
}

// DeleteAnalysis removes a document's analysis; child rows cascade
func (s *DocumentStore) DeleteAnalysis(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return nil
}

const summaryQuery = `
	SELECT ` + documentColumns + `, a.id, a.risk_score, a.overall_summary, a.created_at
	FROM documents d
	LEFT JOIN analyses a ON a.document_id = d.id
`

// ListDocuments returns an owner's documents, newest first
func (s *DocumentStore) ListDocuments(ctx context.Context, ownerID string) ([]*domain.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, summaryQuery+` WHERE d.user_id = $1 ORDER BY d.created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// GetDocumentsByIDs returns the owner's documents among ids
func (s *DocumentStore) GetDocumentsByIDs(ctx context.Context, ownerID string, ids []string) ([]*domain.DocumentSummary, error) {
	if len(ids) == 0 {
		return []*domain.DocumentSummary{}, nil
	}

	rows, err := s.db.QueryContext(ctx, summaryQuery+` WHERE d.user_id = $1 AND d.id = ANY($2)`, ownerID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get documents: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// GetDocumentWithAnalysis loads a document and its full analysis, scoped to the owner
func (s *DocumentStore) GetDocumentWithAnalysis(ctx context.Context, id, ownerID string) (*domain.DocumentWithAnalysis, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents d WHERE d.id = $1 AND d.user_id = $2`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	result := &domain.DocumentWithAnalysis{Document: doc}

	var a domain.Analysis
	var keyTerms []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT id, document_id, risk_score, overall_summary, plain_english, key_terms, created_at
		FROM analyses WHERE document_id = $1
	`, id).Scan(&a.ID, &a.DocumentID, &a.RiskScore, &a.OverallSummary, &a.PlainEnglish, &keyTerms, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	if err := json.Unmarshal(keyTerms, &a.KeyTerms); err != nil {
		return nil, fmt.Errorf("unmarshal key terms: %w", err)
	}

	if a.RiskFactors, err = s.loadRiskFactors(ctx, a.ID); err != nil {
		return nil, err
	}
	if a.Recommendations, err = s.loadRecommendations(ctx, a.ID); err != nil {
		return nil, err
	}
	if a.Clauses, err = s.loadClauses(ctx, a.ID); err != nil {
		return nil, err
	}
	a.Normalize()

	result.Analysis = &a
	return result, nil
}

func (s *DocumentStore) loadRiskFactors(ctx context.Context, analysisID string) ([]domain.RiskFactor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, factor, severity, explanation FROM risk_factors
		WHERE analysis_id = $1 ORDER BY position
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("query risk factors: %w", err)
	}
	defer rows.Close()

	factors := []domain.RiskFactor{}
	for rows.Next() {
		var rf domain.RiskFactor
		if err := rows.Scan(&rf.ID, &rf.Factor, &rf.Severity, &rf.Explanation); err != nil {
			return nil, fmt.Errorf("scan risk factor: %w", err)
		}
		factors = append(factors, rf)
	}
	return factors, rows.Err()
}

func (s *DocumentStore) loadRecommendations(ctx context.Context, analysisID string) ([]domain.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, suggestion, priority FROM recommendations
		WHERE analysis_id = $1 ORDER BY position
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	recs := []domain.Recommendation{}
	for rows.Next() {
		var rec domain.Recommendation
		if err := rows.Scan(&rec.ID, &rec.Category, &rec.Suggestion, &rec.Priority); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *DocumentStore) loadClauses(ctx context.Context, analysisID string) ([]domain.Clause, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, content, risk_level, explanation, suggestions, page, section FROM clauses
		WHERE analysis_id = $1 ORDER BY position
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("query clauses: %w", err)
	}
	defer rows.Close()

	clauses := []domain.Clause{}
	for rows.Next() {
		var c domain.Clause
		var suggestions []byte
		if err := rows.Scan(&c.ID, &c.Type, &c.Content, &c.RiskLevel, &c.Explanation, &suggestions,
			&c.Position.Page, &c.Position.Section); err != nil {
			return nil, fmt.Errorf("scan clause: %w", err)
		}
		if err := json.Unmarshal(suggestions, &c.Suggestions); err != nil {
			return nil, fmt.Errorf("unmarshal clause suggestions: %w", err)
		}
		clauses = append(clauses, c)
	}
	return clauses, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, extra ...any) (*domain.Document, error) {
	var doc domain.Document
	var orgID sql.NullString

	dest := []any{
		&doc.ID,
		&doc.OwnerID,
		&orgID,
		&doc.OriginalName,
		&doc.StorageKey,
		&doc.MimeType,
		&doc.Size,
		&doc.Status,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	doc.OrganizationID = orgID.String
	return &doc, nil
}

func scanSummaries(rows *sql.Rows) ([]*domain.DocumentSummary, error) {
	summaries := []*domain.DocumentSummary{}
	for rows.Next() {
		var analysisID, summary sql.NullString
		var score sql.NullInt64
		var createdAt sql.NullTime

		doc, err := scanDocument(rows, &analysisID, &score, &summary, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		item := &domain.DocumentSummary{Document: doc}
		if analysisID.Valid {
			item.Analysis = &domain.AnalysisHeadline{
				ID:             analysisID.String,
				RiskScore:      int(score.Int64),
				OverallSummary: summary.String,
				CreatedAt:      createdAt.Time,
			}
		}
		summaries = append(summaries, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return summaries, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
