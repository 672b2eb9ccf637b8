package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates a backing service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrFileTooLarge indicates an upload exceeded the configured size limit
	ErrFileTooLarge = errors.New("file too large")

	// ErrStatusConflict indicates a conditional status write found an unexpected status
	ErrStatusConflict = errors.New("status conflict")

	// ErrRunInProgress indicates another pipeline run holds the document
	ErrRunInProgress = errors.New("run already in progress")

	// ErrTaskDeduplicated indicates an in-flight task already holds the dedup key
	ErrTaskDeduplicated = errors.New("task deduplicated")
)

// Pipeline errors. The first group is run-fatal, the second is swallowed by
// best-effort steps, and ErrAnalysisUnavailable always degrades to the
// fallback analysis.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrNoTextExtracted   = errors.New("no text extracted")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrClauseNotFound    = errors.New("clause not found")

	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrRetrievalFailed      = errors.New("retrieval failed")

	ErrAnalysisUnavailable = errors.New("analysis unavailable")
)

// IsRunFatal reports whether err terminates a pipeline run with FAILED.
func IsRunFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrEmbeddingUnavailable),
		errors.Is(err, ErrRetrievalFailed),
		errors.Is(err, ErrAnalysisUnavailable),
		errors.Is(err, ErrRunInProgress),
		errors.Is(err, ErrStatusConflict):
		return false
	}
	return true
}
