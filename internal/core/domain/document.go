package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the lifecycle state of an uploaded document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "PENDING"
	DocumentStatusProcessing DocumentStatus = "PROCESSING"
	DocumentStatusCompleted  DocumentStatus = "COMPLETED"
	DocumentStatusFailed     DocumentStatus = "FAILED"
)

// IsTerminal reports whether no run may move the document out of this status.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// IsValid checks the status is one of the known values
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal edge.
// FAILED -> PENDING is the explicit re-trigger and starts a new run.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case DocumentStatusPending:
		return next == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return next == DocumentStatusCompleted || next == DocumentStatusFailed
	case DocumentStatusFailed:
		return next == DocumentStatusPending
	}
	return false
}

// Supported upload MIME types
const (
	MimeTypePDF    = "application/pdf"
	MimeTypeMSWord = "application/msword"
	MimeTypeDOCX   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// AllowedMimeTypes lists the document formats accepted on upload.
var AllowedMimeTypes = []string{MimeTypePDF, MimeTypeMSWord, MimeTypeDOCX}

// IsAllowedMimeType checks an upload's declared type against AllowedMimeTypes.
func IsAllowedMimeType(mimeType string) bool {
	mimeType = NormalizeMimeType(mimeType)
	for _, allowed := range AllowedMimeTypes {
		if mimeType == allowed {
			return true
		}
	}
	return false
}

// NormalizeMimeType lowercases and strips parameters such as charset.
func NormalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// Document is one uploaded file
type Document struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"userId"`
	OrganizationID string         `json:"organizationId,omitempty"`
	OriginalName   string         `json:"originalName"`
	StorageKey     string         `json:"filename"`
	MimeType       string         `json:"mimeType"`
	Size           int64          `json:"fileSize"`
	Status         DocumentStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// NewDocument creates a PENDING document record for an upload.
func NewDocument(ownerID, organizationID, originalName, mimeType string, size int64) *Document {
	now := time.Now()
	return &Document{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		OrganizationID: organizationID,
		OriginalName:   originalName,
		StorageKey:     NewStorageKey(originalName),
		MimeType:       NormalizeMimeType(mimeType),
		Size:           size,
		Status:         DocumentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewStorageKey returns a unique blob key that keeps the upload's extension.
func NewStorageKey(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return "document-" + uuid.NewString() + ext
}

// AnalysisHeadline is the analysis summary shown in document listings
type AnalysisHeadline struct {
	ID             string    `json:"id"`
	RiskScore      int       `json:"riskScore"`
	OverallSummary string    `json:"overallSummary"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DocumentSummary is a document plus its analysis headline, if analyzed
type DocumentSummary struct {
	*Document
	Analysis *AnalysisHeadline `json:"analysis"`
}

// DocumentWithAnalysis is the full read model of one document
type DocumentWithAnalysis struct {
	*Document
	Analysis *Analysis `json:"analysis"`
}

// ExtractedText is the in-memory result of text extraction. It is never persisted.
type ExtractedText struct {
	Text  string
	Pages int
}

// IsBlank reports whether extraction produced no usable text.
func (e *ExtractedText) IsBlank() bool {
	return e == nil || strings.TrimSpace(e.Text) == ""
}
