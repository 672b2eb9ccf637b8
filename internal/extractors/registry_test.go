package extractors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// Mock extractor for testing
type mockExtractor struct {
	name     string
	types    []string
	priority int
	delay    time.Duration
	panics   bool
}

func (m *mockExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*domain.ExtractedText, error) {
	if m.panics {
		panic("parser bug")
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return &domain.ExtractedText{Text: string(data) + "-" + m.name}, nil
}

func (m *mockExtractor) SupportedTypes() []string {
	return m.types
}

func (m *mockExtractor) Priority() int {
	return m.priority
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockExtractor{name: "test", types: []string{domain.MimeTypePDF}, priority: 50})

	types := r.List()
	if len(types) != 1 {
		t.Fatalf("expected 1 type, got %d", len(types))
	}
	if types[0] != domain.MimeTypePDF {
		t.Errorf("expected %s, got %s", domain.MimeTypePDF, types[0])
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockExtractor{name: "test", types: []string{domain.MimeTypePDF}, priority: 50})

	if r.Get(domain.MimeTypePDF) == nil {
		t.Fatal("expected to find extractor")
	}
	if r.Get("text/plain") != nil {
		t.Error("expected nil for unregistered type")
	}
}

func TestRegistry_Get_PrioritySelection(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockExtractor{name: "low", types: []string{domain.MimeTypePDF}, priority: 10})
	r.Register(&mockExtractor{name: "high", types: []string{domain.MimeTypePDF}, priority: 90})
	r.Register(&mockExtractor{name: "medium", types: []string{domain.MimeTypePDF}, priority: 50})

	e := r.Get(domain.MimeTypePDF)
	if e == nil {
		t.Fatal("expected extractor")
	}
	if e.(*mockExtractor).name != "high" {
		t.Errorf("expected high priority extractor, got %s", e.(*mockExtractor).name)
	}
}

func TestRegistry_Get_MIMEParameters(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockExtractor{name: "pdf", types: []string{domain.MimeTypePDF}, priority: 50})

	testCases := []string{
		"application/pdf",
		"APPLICATION/PDF",
		"application/pdf; charset=binary",
		"  application/pdf ",
	}
	for _, mime := range testCases {
		if r.Get(mime) == nil {
			t.Errorf("expected match for %q", mime)
		}
	}
}

func TestRegistry_Extract_Unsupported(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract(context.Background(), []byte("x"), "image/png")
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestRegistry_Extract_Dispatches(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockExtractor{name: "docx", types: []string{domain.MimeTypeDOCX}, priority: 50})

	out, err := r.Extract(context.Background(), []byte("body"), domain.MimeTypeDOCX)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "body-docx" {
		t.Errorf("expected body-docx, got %q", out.Text)
	}
}

func TestRegistry_Extract_Timeout(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockExtractor{name: "slow", types: []string{domain.MimeTypePDF}, priority: 50, delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Extract(ctx, []byte("x"), domain.MimeTypePDF)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRegistry_Extract_RecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockExtractor{name: "bad", types: []string{domain.MimeTypePDF}, priority: 50, panics: true})

	_, err := r.Extract(context.Background(), []byte("x"), domain.MimeTypePDF)
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Errorf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, mime := range domain.AllowedMimeTypes {
		if r.Get(mime) == nil {
			t.Errorf("expected extractor for %s", mime)
		}
	}
}

func TestCleanText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"crlf", "a\r\nb", "a\nb"},
		{"cr", "a\rb", "a\nb"},
		{"blank lines", "a\n\n\n\nb", "a\n\nb"},
		{"nul", "a\x00b", "ab"},
		{"trim", "  a  \n", "a"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanText(tc.input); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
