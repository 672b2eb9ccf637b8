package extractors

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

var _ driven.FormatExtractor = (*DOCXExtractor)(nil)

const (
	docxBodyPart  = "word/document.xml"
	docxPropsPart = "docProps/app.xml"
)

// DOCXExtractor reads the body part of an Office Open XML word document.
type DOCXExtractor struct{}

func (e *DOCXExtractor) SupportedTypes() []string {
	return []string{domain.MimeTypeDOCX}
}

func (e *DOCXExtractor) Priority() int {
	return 90
}

// Extract walks word/document.xml. Paragraphs end with a newline; tabs and
// breaks keep their layout.
func (e *DOCXExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*domain.ExtractedText, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: docx container: %w", domain.ErrExtractionFailed, err)
	}

	body, err := readZipPart(zr, docxBodyPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
	}
	text, err := docxText(body)
	if err != nil {
		return nil, fmt.Errorf("%w: docx body: %w", domain.ErrExtractionFailed, err)
	}

	pages := 0
	if props, err := readZipPart(zr, docxPropsPart); err == nil {
		pages = docxPageCount(props)
	}

	return &domain.ExtractedText{Text: cleanText(text), Pages: pages}, nil
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("missing %s", name)
}

func docxText(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var out strings.Builder
	inRun, inText := false, false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				// tab stops in paragraph properties share the element name
				if inRun {
					out.WriteString("\t")
				}
			case "br", "cr":
				if inRun {
					out.WriteString("\n")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				out.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return out.String(), nil
}

func docxPageCount(props []byte) int {
	var app struct {
		Pages int `xml:"Pages"`
	}
	if err := xml.Unmarshal(props, &app); err != nil {
		return 0
	}
	return app.Pages
}
