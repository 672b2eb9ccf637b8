package driven

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// TextExtractor converts a raw document into plain text.
type TextExtractor interface {
	// Extract returns the document's text.
	// Returns domain.ErrUnsupportedFormat for unknown MIME types and
	// domain.ErrExtractionFailed for corrupt input.
	Extract(ctx context.Context, data []byte, mimeType string) (*domain.ExtractedText, error)
}

// FormatExtractor handles one family of document formats.
type FormatExtractor interface {
	TextExtractor

	// SupportedTypes returns the MIME types this extractor handles
	SupportedTypes() []string

	// Priority returns the extractor priority (higher = more specific).
	// Priority ranges:
	//   50-100: Format-specific parsers (PDF, DOCX)
	//   10-49:  Container-level recovery (legacy Word)
	Priority() int
}

// ExtractorRegistry picks the best extractor for a MIME type.
// When multiple extractors match, the highest priority one is used.
type ExtractorRegistry interface {
	TextExtractor

	// Get retrieves the best-matching extractor, or nil if none is registered
	Get(mimeType string) FormatExtractor

	// Register registers an extractor
	Register(extractor FormatExtractor)

	// List returns all registered MIME types
	List() []string
}
