package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"Document not found"`
}

// DocumentRef is the short document view returned by mutating endpoints
type DocumentRef struct {
	ID       string                `json:"id"`
	Filename string                `json:"filename"`
	Status   domain.DocumentStatus `json:"status"`
}

// UploadResponse is returned after a successful upload
type UploadResponse struct {
	Message  string      `json:"message"`
	Document DocumentRef `json:"document"`
}

// DocumentListResponse wraps the caller's documents
type DocumentListResponse struct {
	Documents []*domain.DocumentSummary `json:"documents"`
}

// DocumentResponse wraps one document with its analysis
type DocumentResponse struct {
	Document *domain.DocumentWithAnalysis `json:"document"`
}

// SimilarDocumentsResponse wraps the similar-documents view
type SimilarDocumentsResponse struct {
	SimilarDocuments []*driving.SimilarDocument `json:"similarDocuments"`
	Count            int                        `json:"count"`
}

// SimilarClausesResponse wraps the similar-clauses view
type SimilarClausesResponse struct {
	SimilarClauses []*driving.SimilarClause `json:"similarClauses"`
	Count          int                      `json:"count"`
}

// HealthResponse reports per-component health
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// healthCheckTimeout bounds each component ping
const healthCheckTimeout = 3 * time.Second

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Pings the database, queue and vector index
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].Ping(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			resp.Components[name] = "unhealthy"
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Document endpoints

// handleUploadDocument godoc
// @Summary      Upload a document
// @Description  Accepts a PDF or Word file in the "document" form field and queues it for analysis
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Success      201  {object}  UploadResponse
// @Failure      400  {object}  ErrorResponse  "No file uploaded or unsupported type"
// @Failure      413  {object}  ErrorResponse  "File too large"
// @Security     BearerAuth
// @Router       /api/v1/documents [post]
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	limit := s.maxUploadSize + multipartOverhead
	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("document")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() { _ = file.Close() }()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	doc, err := s.docService.Upload(r.Context(), authCtx, driving.UploadRequest{
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         file,
	})
	if err != nil {
		s.writeServiceError(w, err, "Failed to upload document")
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Message: "Document uploaded successfully",
		Document: DocumentRef{
			ID:       doc.ID,
			Filename: doc.OriginalName,
			Status:   doc.Status,
		},
	})
}

// handleListDocuments godoc
// @Summary      List documents
// @Description  Returns the caller's documents, newest first, with analysis headlines
// @Tags         Documents
// @Produce      json
// @Success      200  {object}  DocumentListResponse
// @Security     BearerAuth
// @Router       /api/v1/documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	docs, err := s.docService.List(r.Context(), authCtx)
	if err != nil {
		s.writeServiceError(w, err, "Failed to fetch documents")
		return
	}

	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
}

// handleGetDocument godoc
// @Summary      Get document
// @Description  Returns one document with its full analysis
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  DocumentResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	doc, err := s.docService.Get(r.Context(), authCtx, id)
	if err != nil {
		s.writeServiceError(w, err, "Failed to fetch document")
		return
	}

	writeJSON(w, http.StatusOK, DocumentResponse{Document: doc})
}

// handleSimilarDocuments godoc
// @Summary      Similar documents
// @Description  Returns up to five of the caller's documents most similar to this one
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  SimilarDocumentsResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/documents/{id}/similar [get]
func (s *Server) handleSimilarDocuments(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	similar, err := s.docService.FindSimilar(r.Context(), authCtx, id)
	if err != nil {
		s.writeServiceError(w, err, "Failed to find similar documents")
		return
	}
	if similar == nil {
		similar = []*driving.SimilarDocument{}
	}

	writeJSON(w, http.StatusOK, SimilarDocumentsResponse{
		SimilarDocuments: similar,
		Count:            len(similar),
	})
}

// handleSimilarClauses godoc
// @Summary      Similar clauses
// @Description  Returns up to five of the caller's clauses of the same type as clause n of this document
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Param        n    path      int     true  "Clause index"
// @Success      200  {object}  SimilarClausesResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/documents/{id}/clauses/{n}/similar [get]
func (s *Server) handleSimilarClauses(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid clause index")
		return
	}

	similar, err := s.docService.FindSimilarClauses(r.Context(), authCtx, id, n)
	if err != nil {
		s.writeServiceError(w, err, "Failed to find similar clauses")
		return
	}
	if similar == nil {
		similar = []*driving.SimilarClause{}
	}

	writeJSON(w, http.StatusOK, SimilarClausesResponse{
		SimilarClauses: similar,
		Count:          len(similar),
	})
}

// handleProcessDocument godoc
// @Summary      Re-trigger processing
// @Description  Resets a FAILED document to PENDING and queues a new run. PENDING documents are re-queued; other statuses are left alone.
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      202  {object}  UploadResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/v1/documents/{id}/process [post]
func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	// Ownership check; the pipeline itself trusts the document id
	doc, err := s.docService.Get(r.Context(), authCtx, id)
	if err != nil {
		s.writeServiceError(w, err, "Failed to fetch document")
		return
	}

	if err := s.pipeline.SubmitForProcessing(r.Context(), id); err != nil {
		s.writeServiceError(w, err, "Failed to submit document")
		return
	}

	status := doc.Status
	if status == domain.DocumentStatusFailed {
		status = domain.DocumentStatusPending
	}

	writeJSON(w, http.StatusAccepted, UploadResponse{
		Message: "Document submitted for processing",
		Document: DocumentRef{
			ID:       doc.ID,
			Filename: doc.OriginalName,
			Status:   status,
		},
	})
}

// writeServiceError maps domain errors to HTTP statuses
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrClauseNotFound):
		writeError(w, http.StatusNotFound, "Clause not found")
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, domain.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "Invalid file type. Only PDF and Word documents are allowed.")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	default:
		s.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
