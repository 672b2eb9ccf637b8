// Package extractors turns uploaded document bytes into plain text.
package extractors

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry implements ExtractorRegistry with priority-based selection.
// When multiple extractors match a MIME type, the highest priority one is used.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.FormatExtractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make([]driven.FormatExtractor, 0),
	}
}

// DefaultRegistry creates a registry with the PDF, DOCX and legacy Word extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPDFExtractor())
	r.Register(&DOCXExtractor{})
	r.Register(&MSWordExtractor{})
	return r
}

// Register registers an extractor.
func (r *Registry) Register(extractor driven.FormatExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors = append(r.extractors, extractor)
}

// Get retrieves the best-matching extractor for a MIME type, or nil.
func (r *Registry) Get(mimeType string) driven.FormatExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mimeType = domain.NormalizeMimeType(mimeType)

	var matches []driven.FormatExtractor
	for _, e := range r.extractors {
		if supports(e.SupportedTypes(), mimeType) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority() > matches[j].Priority()
	})
	return matches[0]
}

// List returns all registered MIME types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typeSet := make(map[string]struct{})
	for _, e := range r.extractors {
		for _, t := range e.SupportedTypes() {
			typeSet[t] = struct{}{}
		}
	}

	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Extract dispatches to the best extractor. Parsers are not context-aware,
// so the parse runs in its own goroutine and an expired context abandons it.
func (r *Registry) Extract(ctx context.Context, data []byte, mimeType string) (*domain.ExtractedText, error) {
	extractor := r.Get(mimeType)
	if extractor == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mimeType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		text *domain.ExtractedText
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("%w: parser panic: %v", domain.ErrExtractionFailed, p)}
			}
		}()
		text, err := extractor.Extract(ctx, data, mimeType)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

func supports(supportedTypes []string, mimeType string) bool {
	for _, supported := range supportedTypes {
		if strings.EqualFold(strings.TrimSpace(supported), mimeType) {
			return true
		}
	}
	return false
}

// cleanText normalises line endings, drops NULs and trims the result.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")

	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}
