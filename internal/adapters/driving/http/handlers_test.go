package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
)

// Mock services for testing

type mockTokens struct {
	parseFn func(token string) (*domain.TokenClaims, error)
}

func (m *mockTokens) GenerateToken(claims *domain.TokenClaims) (string, error) {
	return "token-" + claims.UserID, nil
}

func (m *mockTokens) ParseToken(token string) (*domain.TokenClaims, error) {
	if m.parseFn != nil {
		return m.parseFn(token)
	}
	return nil, domain.ErrTokenInvalid
}

type mockDocumentService struct {
	uploadFn  func(ctx context.Context, auth *domain.AuthContext, req driving.UploadRequest) (*domain.Document, error)
	listFn    func(ctx context.Context, auth *domain.AuthContext) ([]*domain.DocumentSummary, error)
	getFn     func(ctx context.Context, auth *domain.AuthContext, id string) (*domain.DocumentWithAnalysis, error)
	similarFn func(ctx context.Context, auth *domain.AuthContext, id string) ([]*driving.SimilarDocument, error)
	clausesFn func(ctx context.Context, auth *domain.AuthContext, id string, n int) ([]*driving.SimilarClause, error)
}

func (m *mockDocumentService) Upload(ctx context.Context, auth *domain.AuthContext, req driving.UploadRequest) (*domain.Document, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, auth, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDocumentService) List(ctx context.Context, auth *domain.AuthContext) ([]*domain.DocumentSummary, error) {
	if m.listFn != nil {
		return m.listFn(ctx, auth)
	}
	return []*domain.DocumentSummary{}, nil
}

func (m *mockDocumentService) Get(ctx context.Context, auth *domain.AuthContext, id string) (*domain.DocumentWithAnalysis, error) {
	if m.getFn != nil {
		return m.getFn(ctx, auth, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) FindSimilar(ctx context.Context, auth *domain.AuthContext, id string) ([]*driving.SimilarDocument, error) {
	if m.similarFn != nil {
		return m.similarFn(ctx, auth, id)
	}
	return nil, nil
}

func (m *mockDocumentService) FindSimilarClauses(ctx context.Context, auth *domain.AuthContext, id string, n int) ([]*driving.SimilarClause, error) {
	if m.clausesFn != nil {
		return m.clausesFn(ctx, auth, id, n)
	}
	return nil, nil
}

type mockPipeline struct {
	submitted []string
	err       error
}

func (m *mockPipeline) SubmitForProcessing(ctx context.Context, documentID string) error {
	m.submitted = append(m.submitted, documentID)
	return m.err
}

type pingResult struct {
	err error
}

func (p pingResult) Ping(ctx context.Context) error {
	return p.err
}

// alice is accepted by the token mock used in routed tests
var alice = &domain.AuthContext{UserID: "alice", Email: "alice@example.com", Role: domain.RoleMember}

func newTestServer(docs driving.DocumentService, pipeline driving.PipelineService, checks map[string]Pinger) *Server {
	tokens := &mockTokens{
		parseFn: func(token string) (*domain.TokenClaims, error) {
			if token == "alice-token" {
				return &domain.TokenClaims{UserID: alice.UserID, Email: alice.Email, Role: alice.Role}, nil
			}
			return nil, domain.ErrTokenInvalid
		},
	}
	cfg := DefaultConfig()
	cfg.MaxUploadSize = 1 << 10
	return NewServer(cfg, docs, pipeline, tokens, checks)
}

func withAuth(req *http.Request, auth *domain.AuthContext) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), authContextKey, auth))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func multipartUpload(t *testing.T, field, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthHandler(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, map[string]Pinger{
		"database": pingResult{},
		"queue":    PingerFunc(func(context.Context) error { return nil }),
	})

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	server.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("expected status ok, got %s", response.Status)
	}
	if response.Components["database"] != "ok" || response.Components["queue"] != "ok" {
		t.Errorf("unexpected components: %v", response.Components)
	}
}

func TestHealthHandler_ComponentDown(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, map[string]Pinger{
		"database": pingResult{},
		"vectors":  pingResult{err: errors.New("connection refused")},
	})

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	server.handleHealth(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "degraded" {
		t.Errorf("expected status degraded, got %s", response.Status)
	}
	if response.Components["vectors"] != "unhealthy" {
		t.Errorf("expected vectors unhealthy, got %s", response.Components["vectors"])
	}
}

func TestHealthHandler_NoChecks(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, nil)

	rr := httptest.NewRecorder()
	server.handleHealth(rr, httptest.NewRequest("GET", "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeError(rr, http.StatusBadRequest, "bad request")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if got := decodeError(t, rr); got != "bad request" {
		t.Errorf("expected error 'bad request', got %s", got)
	}
}

func TestHandleUploadDocument_Success(t *testing.T) {
	var received driving.UploadRequest
	var content []byte
	mockDocs := &mockDocumentService{
		uploadFn: func(ctx context.Context, auth *domain.AuthContext, req driving.UploadRequest) (*domain.Document, error) {
			if auth.UserID != "alice" {
				t.Errorf("expected owner alice, got %s", auth.UserID)
			}
			received = req
			content, _ = io.ReadAll(req.Body)
			doc := domain.NewDocument(auth.UserID, "", req.OriginalName, req.MimeType, req.Size)
			return doc, nil
		},
	}
	server := newTestServer(mockDocs, &mockPipeline{}, nil)

	req := multipartUpload(t, "document", "nda.pdf", domain.MimeTypePDF, []byte("%PDF-1.4 test"))
	rr := httptest.NewRecorder()

	server.handleUploadDocument(rr, withAuth(req, alice))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if received.OriginalName != "nda.pdf" {
		t.Errorf("expected name nda.pdf, got %s", received.OriginalName)
	}
	if received.MimeType != domain.MimeTypePDF {
		t.Errorf("expected pdf mime type, got %s", received.MimeType)
	}
	if string(content) != "%PDF-1.4 test" {
		t.Errorf("unexpected body %q", content)
	}

	var response UploadResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Message != "Document uploaded successfully" {
		t.Errorf("unexpected message %q", response.Message)
	}
	if response.Document.Filename != "nda.pdf" {
		t.Errorf("expected filename nda.pdf, got %s", response.Document.Filename)
	}
	if response.Document.Status != domain.DocumentStatusPending {
		t.Errorf("expected PENDING, got %s", response.Document.Status)
	}
}

func TestHandleUploadDocument_NoFile(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, nil)

	req := multipartUpload(t, "attachment", "nda.pdf", domain.MimeTypePDF, []byte("x"))
	rr := httptest.NewRecorder()

	server.handleUploadDocument(rr, withAuth(req, alice))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if got := decodeError(t, rr); got != "No file uploaded" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestHandleUploadDocument_TooLarge(t *testing.T) {
	server := newTestServer(&mockDocumentService{
		uploadFn: func(context.Context, *domain.AuthContext, driving.UploadRequest) (*domain.Document, error) {
			t.Error("upload should not be reached")
			return nil, nil
		},
	}, &mockPipeline{}, nil)

	big := bytes.Repeat([]byte("a"), int(server.maxUploadSize+multipartOverhead)+1)
	req := multipartUpload(t, "document", "big.pdf", domain.MimeTypePDF, big)
	rr := httptest.NewRecorder()

	server.handleUploadDocument(rr, withAuth(req, alice))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rr.Code)
	}
}

func TestHandleUploadDocument_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unsupported format", fmt.Errorf("%w: text/plain", domain.ErrUnsupportedFormat), http.StatusBadRequest},
		{"too large", domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"storage down", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(&mockDocumentService{
				uploadFn: func(context.Context, *domain.AuthContext, driving.UploadRequest) (*domain.Document, error) {
					return nil, tt.err
				},
			}, &mockPipeline{}, nil)

			req := multipartUpload(t, "document", "notes.txt", "text/plain", []byte("hello"))
			rr := httptest.NewRecorder()

			server.handleUploadDocument(rr, withAuth(req, alice))

			if rr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestHandleUploadDocument_NoAuth(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, nil)

	req := multipartUpload(t, "document", "nda.pdf", domain.MimeTypePDF, []byte("x"))
	rr := httptest.NewRecorder()

	server.handleUploadDocument(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestHandleListDocuments(t *testing.T) {
	mockDocs := &mockDocumentService{
		listFn: func(ctx context.Context, auth *domain.AuthContext) ([]*domain.DocumentSummary, error) {
			doc := domain.NewDocument(auth.UserID, "", "lease.docx", domain.MimeTypeDOCX, 10)
			return []*domain.DocumentSummary{{
				Document: doc,
				Analysis: &domain.AnalysisHeadline{ID: "a-1", RiskScore: 40, OverallSummary: "ok"},
			}}, nil
		},
	}
	server := newTestServer(mockDocs, &mockPipeline{}, nil)

	rr := httptest.NewRecorder()
	server.handleListDocuments(rr, withAuth(httptest.NewRequest("GET", "/api/v1/documents", nil), alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response struct {
		Documents []struct {
			OriginalName string `json:"originalName"`
			Analysis     *struct {
				RiskScore int `json:"riskScore"`
			} `json:"analysis"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(response.Documents))
	}
	if response.Documents[0].OriginalName != "lease.docx" {
		t.Errorf("unexpected name %s", response.Documents[0].OriginalName)
	}
	if response.Documents[0].Analysis == nil || response.Documents[0].Analysis.RiskScore != 40 {
		t.Errorf("expected analysis headline with risk score 40")
	}
}

func TestHandleListDocuments_Empty(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, nil)

	rr := httptest.NewRecorder()
	server.handleListDocuments(rr, withAuth(httptest.NewRequest("GET", "/api/v1/documents", nil), alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"documents":[]`)) {
		t.Errorf("expected empty documents array, got %s", rr.Body.String())
	}
}

func TestHandleGetDocument_Success(t *testing.T) {
	mockDocs := &mockDocumentService{
		getFn: func(ctx context.Context, auth *domain.AuthContext, id string) (*domain.DocumentWithAnalysis, error) {
			if id != "doc-1" {
				return nil, domain.ErrNotFound
			}
			return &domain.DocumentWithAnalysis{
				Document: &domain.Document{ID: id, OwnerID: auth.UserID, OriginalName: "nda.pdf", Status: domain.DocumentStatusCompleted},
			}, nil
		},
	}
	server := newTestServer(mockDocs, &mockPipeline{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/documents/doc-1", nil)
	req.SetPathValue("id", "doc-1")
	rr := httptest.NewRecorder()

	server.handleGetDocument(rr, withAuth(req, alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response struct {
		Document struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"document"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Document.ID != "doc-1" {
		t.Errorf("expected doc-1, got %s", response.Document.ID)
	}
	if response.Document.Status != "COMPLETED" {
		t.Errorf("expected COMPLETED, got %s", response.Document.Status)
	}
}

func TestHandleGetDocument_NotFound(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/documents/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rr := httptest.NewRecorder()

	server.handleGetDocument(rr, withAuth(req, alice))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
	if got := decodeError(t, rr); got != "Document not found" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestHandleGetDocument_MissingID(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, nil)

	rr := httptest.NewRecorder()
	server.handleGetDocument(rr, withAuth(httptest.NewRequest("GET", "/api/v1/documents/", nil), alice))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleSimilarDocuments(t *testing.T) {
	mockDocs := &mockDocumentService{
		similarFn: func(ctx context.Context, auth *domain.AuthContext, id string) ([]*driving.SimilarDocument, error) {
			return []*driving.SimilarDocument{
				{DocumentSummary: &domain.DocumentSummary{Document: &domain.Document{ID: "doc-2"}}, Similarity: 91},
				{DocumentSummary: &domain.DocumentSummary{Document: &domain.Document{ID: "doc-3"}}, Similarity: 64},
			}, nil
		},
	}
	server := newTestServer(mockDocs, &mockPipeline{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/documents/doc-1/similar", nil)
	req.SetPathValue("id", "doc-1")
	rr := httptest.NewRecorder()

	server.handleSimilarDocuments(rr, withAuth(req, alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response struct {
		SimilarDocuments []struct {
			ID         string `json:"id"`
			Similarity int    `json:"similarity"`
		} `json:"similarDocuments"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Count != 2 {
		t.Errorf("expected count 2, got %d", response.Count)
	}
	if response.SimilarDocuments[0].ID != "doc-2" || response.SimilarDocuments[0].Similarity != 91 {
		t.Errorf("unexpected first match %+v", response.SimilarDocuments[0])
	}
}

func TestHandleSimilarDocuments_None(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/documents/doc-1/similar", nil)
	req.SetPathValue("id", "doc-1")
	rr := httptest.NewRecorder()

	server.handleSimilarDocuments(rr, withAuth(req, alice))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"similarDocuments":[]`)) {
		t.Errorf("expected empty array, got %s", rr.Body.String())
	}
}

func TestHandleSimilarClauses(t *testing.T) {
	var gotID string
	var gotN int
	mockDocs := &mockDocumentService{
		clausesFn: func(ctx context.Context, auth *domain.AuthContext, id string, n int) ([]*driving.SimilarClause, error) {
			gotID, gotN = id, n
			return []*driving.SimilarClause{
				{DocumentID: "doc-2", Type: domain.ClauseTypeTermination, Content: "Either party may terminate", Similarity: 88},
			}, nil
		},
	}
	server := newTestServer(mockDocs, &mockPipeline{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/documents/doc-1/clauses/2/similar", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotID != "doc-1" || gotN != 2 {
		t.Errorf("expected doc-1 clause 2, got %s clause %d", gotID, gotN)
	}

	var response SimilarClausesResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Count != 1 || response.SimilarClauses[0].DocumentID != "doc-2" || response.SimilarClauses[0].Similarity != 88 {
		t.Errorf("unexpected response %+v", response)
	}
}

func TestHandleSimilarClauses_Errors(t *testing.T) {
	tests := []struct {
		name       string
		index      string
		err        error
		wantStatus int
		wantError  string
	}{
		{"bad index", "first", nil, http.StatusBadRequest, "invalid clause index"},
		{"negative index", "-1", nil, http.StatusBadRequest, "invalid clause index"},
		{"no such clause", "9", domain.ErrClauseNotFound, http.StatusNotFound, "Clause not found"},
		{"not owned", "0", domain.ErrNotFound, http.StatusNotFound, "Document not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDocs := &mockDocumentService{
				clausesFn: func(ctx context.Context, auth *domain.AuthContext, id string, n int) ([]*driving.SimilarClause, error) {
					return nil, tt.err
				},
			}
			server := newTestServer(mockDocs, &mockPipeline{}, nil)

			req := httptest.NewRequest("GET", "/api/v1/documents/doc-1/clauses/"+tt.index+"/similar", nil)
			req.SetPathValue("id", "doc-1")
			req.SetPathValue("n", tt.index)
			rr := httptest.NewRecorder()

			server.handleSimilarClauses(rr, withAuth(req, alice))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if got := decodeError(t, rr); got != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, got)
			}
		})
	}
}

func TestHandleProcessDocument(t *testing.T) {
	tests := []struct {
		name           string
		status         domain.DocumentStatus
		expectedStatus domain.DocumentStatus
	}{
		{"failed is reset", domain.DocumentStatusFailed, domain.DocumentStatusPending},
		{"completed unchanged", domain.DocumentStatusCompleted, domain.DocumentStatusCompleted},
		{"pending requeued", domain.DocumentStatusPending, domain.DocumentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDocs := &mockDocumentService{
				getFn: func(ctx context.Context, auth *domain.AuthContext, id string) (*domain.DocumentWithAnalysis, error) {
					return &domain.DocumentWithAnalysis{
						Document: &domain.Document{ID: id, OriginalName: "nda.pdf", Status: tt.status},
					}, nil
				},
			}
			pipeline := &mockPipeline{}
			server := newTestServer(mockDocs, pipeline, nil)

			req := httptest.NewRequest("POST", "/api/v1/documents/doc-1/process", nil)
			req.SetPathValue("id", "doc-1")
			rr := httptest.NewRecorder()

			server.handleProcessDocument(rr, withAuth(req, alice))

			if rr.Code != http.StatusAccepted {
				t.Fatalf("expected status 202, got %d", rr.Code)
			}
			if len(pipeline.submitted) != 1 || pipeline.submitted[0] != "doc-1" {
				t.Errorf("expected doc-1 submitted, got %v", pipeline.submitted)
			}

			var response UploadResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Document.Status != tt.expectedStatus {
				t.Errorf("expected %s, got %s", tt.expectedStatus, response.Document.Status)
			}
		})
	}
}

func TestHandleProcessDocument_NotOwned(t *testing.T) {
	pipeline := &mockPipeline{}
	server := newTestServer(&mockDocumentService{}, pipeline, nil)

	req := httptest.NewRequest("POST", "/api/v1/documents/doc-9/process", nil)
	req.SetPathValue("id", "doc-9")
	rr := httptest.NewRecorder()

	server.handleProcessDocument(rr, withAuth(req, alice))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
	if len(pipeline.submitted) != 0 {
		t.Errorf("expected nothing submitted, got %v", pipeline.submitted)
	}
}

func TestHandleProcessDocument_SubmitError(t *testing.T) {
	mockDocs := &mockDocumentService{
		getFn: func(ctx context.Context, auth *domain.AuthContext, id string) (*domain.DocumentWithAnalysis, error) {
			return &domain.DocumentWithAnalysis{Document: &domain.Document{ID: id, Status: domain.DocumentStatusFailed}}, nil
		},
	}
	server := newTestServer(mockDocs, &mockPipeline{err: errors.New("queue down")}, nil)

	req := httptest.NewRequest("POST", "/api/v1/documents/doc-1/process", nil)
	req.SetPathValue("id", "doc-1")
	rr := httptest.NewRecorder()

	server.handleProcessDocument(rr, withAuth(req, alice))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
}

func TestRoutes_RequireToken(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, nil)
	handler := server.Handler()

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/documents"},
		{"POST", "/api/v1/documents"},
		{"GET", "/api/v1/documents/doc-1"},
		{"GET", "/api/v1/documents/doc-1/similar"},
		{"POST", "/api/v1/documents/doc-1/process"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rr.Code)
			}
		})
	}
}

func TestRoutes_Authenticated(t *testing.T) {
	mockDocs := &mockDocumentService{
		getFn: func(ctx context.Context, auth *domain.AuthContext, id string) (*domain.DocumentWithAnalysis, error) {
			if auth.UserID != "alice" {
				return nil, domain.ErrNotFound
			}
			return &domain.DocumentWithAnalysis{Document: &domain.Document{ID: id, OwnerID: "alice"}}, nil
		},
	}
	server := newTestServer(mockDocs, &mockPipeline{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/documents/doc-7", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"id":"doc-7"`)) {
		t.Errorf("expected doc-7 in body, got %s", rr.Body.String())
	}
}

func TestRoutes_HealthIsPublic(t *testing.T) {
	server := newTestServer(&mockDocumentService{}, &mockPipeline{}, nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}
