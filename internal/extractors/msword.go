package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/richardlehane/mscfb"
)

var _ driven.FormatExtractor = (*MSWordExtractor)(nil)

const (
	wordDocumentStream = "WordDocument"
	// minTextRun drops short runs, which are mostly binary noise
	minTextRun = 4
)

// MSWordExtractor recovers text from legacy Word (OLE2) documents.
// It does not interpret the piece table; printable runs are read straight
// from the WordDocument stream.
type MSWordExtractor struct{}

func (e *MSWordExtractor) SupportedTypes() []string {
	return []string{domain.MimeTypeMSWord}
}

func (e *MSWordExtractor) Priority() int {
	return 40
}

// Extract opens the compound file and scans its WordDocument stream.
func (e *MSWordExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*domain.ExtractedText, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: ole2 container: %w", domain.ErrExtractionFailed, err)
	}

	for {
		entry, err := doc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: ole2 directory: %w", domain.ErrExtractionFailed, err)
		}
		if entry.Name != wordDocumentStream {
			continue
		}

		stream, err := io.ReadAll(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrExtractionFailed, wordDocumentStream, err)
		}
		return &domain.ExtractedText{Text: cleanText(recoverText(stream))}, nil
	}

	return nil, fmt.Errorf("%w: no %s stream", domain.ErrExtractionFailed, wordDocumentStream)
}

// recoverText returns whichever of the UTF-16LE or 8-bit readings yields more text.
func recoverText(stream []byte) string {
	wide := utf16Runs(stream)
	narrow := byteRuns(stream)
	if len(wide) >= len(narrow) {
		return wide
	}
	return narrow
}

func utf16Runs(b []byte) string {
	var out strings.Builder
	var run []uint16

	flush := func() {
		if len(run) >= minTextRun {
			out.WriteString(string(utf16.Decode(run)))
			out.WriteString("\n")
		}
		run = run[:0]
	}

	for i := 0; i+1 < len(b); i += 2 {
		c := uint16(b[i]) | uint16(b[i+1])<<8
		if isWideTextRune(rune(c)) {
			run = append(run, c)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

func byteRuns(b []byte) string {
	var out strings.Builder
	start := -1

	flush := func(end int) {
		if start >= 0 && end-start >= minTextRun {
			out.Write(b[start:end])
			out.WriteString("\n")
		}
		start = -1
	}

	for i, c := range b {
		if c < 0x80 && isTextRune(rune(c)) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(b))
	return out.String()
}

// isWideTextRune limits UTF-16 runs to Latin scripts and punctuation, so
// 8-bit text read two bytes at a time does not pass as CJK.
func isWideTextRune(r rune) bool {
	switch {
	case r < 0x0250:
		return isTextRune(r)
	case r >= 0x2000 && r <= 0x206f:
		return true
	case r == 0x20ac:
		return true
	}
	return false
}

func isTextRune(r rune) bool {
	switch {
	case r == '\t' || r == '\r' || r == '\n':
		return true
	case r < 0x20 || r == 0x7f:
		return false
	}
	return true
}
