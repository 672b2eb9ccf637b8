package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	pdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var _ driven.FormatExtractor = (*PDFExtractor)(nil)

var disablePDFConfigDir sync.Once

// PDFExtractor validates PDFs with pdfcpu and reads their text with ledongthuc/pdf.
type PDFExtractor struct {
	conf *model.Configuration
}

// NewPDFExtractor creates a PDF extractor using relaxed validation.
func NewPDFExtractor() *PDFExtractor {
	disablePDFConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf}
}

func (e *PDFExtractor) SupportedTypes() []string {
	return []string{domain.MimeTypePDF}
}

func (e *PDFExtractor) Priority() int {
	return 90
}

// Extract returns the plain text of every page.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*domain.ExtractedText, error) {
	pages, err := api.PageCount(bytes.NewReader(data), e.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf validation: %w", domain.ErrExtractionFailed, err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: pdf reader: %w", domain.ErrExtractionFailed, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("%w: pdf plaintext: %w", domain.ErrExtractionFailed, err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf read: %w", domain.ErrExtractionFailed, err)
	}

	return &domain.ExtractedText{Text: cleanText(string(b)), Pages: pages}, nil
}
