package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/runtime"
)

const (
	// MaxPromptDocumentChars bounds how much document text reaches the model
	MaxPromptDocumentChars = 6000

	analysisMaxTokens   = 2500
	analysisTemperature = 0.3
)

const analysisSystemPrompt = "You are a legal document analysis expert. Always respond with valid JSON only."

const analysisSchema = `{
  "riskScore": (number between 0-100),
  "overallSummary": "string",
  "plainEnglish": "string",
  "keyTerms": ["array", "of", "important", "terms"],
  "riskFactors": [
    {
      "factor": "string",
      "severity": "LOW|MEDIUM|HIGH|CRITICAL",
      "explanation": "string"
    }
  ],
  "recommendations": [
    {
      "category": "string",
      "suggestion": "string",
      "priority": "LOW|MEDIUM|HIGH"
    }
  ],
  "clauses": [
    {
      "type": "TERMINATION|PAYMENT|LIABILITY|CONFIDENTIALITY|INTELLECTUAL_PROPERTY|DISPUTE_RESOLUTION|FORCE_MAJEURE|OTHER",
      "content": "string",
      "riskLevel": "LOW|MEDIUM|HIGH|CRITICAL",
      "explanation": "string",
      "suggestions": ["array", "of", "suggestions"],
      "position": {"page": 1, "section": "string"}
    }
  ]
}`

// AnalysisEngine asks the reasoning model for a structured risk analysis.
// Any model or decode failure yields the fallback analysis.
type AnalysisEngine struct {
	services *runtime.Services
	timeout  time.Duration
	logger   *slog.Logger
}

// AnalysisEngineConfig holds dependencies for AnalysisEngine.
type AnalysisEngineConfig struct {
	Services *runtime.Services
	Timeout  time.Duration
	Logger   *slog.Logger
}

// NewAnalysisEngine creates a new analysis engine.
func NewAnalysisEngine(cfg AnalysisEngineConfig) *AnalysisEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisEngine{
		services: cfg.Services,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Analyze returns a structured analysis of text, using similar documents as
// context. When no model is configured it returns the fallback together with
// domain.ErrAnalysisUnavailable. Other failures return the fallback and nil.
func (e *AnalysisEngine) Analyze(ctx context.Context, text string, similar []domain.VectorMatch) (*domain.Analysis, error) {
	llm := e.services.LLMService()
	if llm == nil {
		return domain.FallbackAnalysis(), domain.ErrAnalysisUnavailable
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := llm.Complete(ctx, domain.CompletionRequest{
		System:      analysisSystemPrompt,
		Prompt:      BuildAnalysisPrompt(text, similar),
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemperature,
		JSONOnly:    true,
	})
	if err != nil {
		e.logger.Warn("analysis model call failed, using fallback", "model", llm.Model(), "error", err)
		return domain.FallbackAnalysis(), nil
	}

	analysis, err := DecodeAnalysis(raw)
	if err != nil {
		e.logger.Warn("analysis response rejected, using fallback", "model", llm.Model(), "error", err)
		return domain.FallbackAnalysis(), nil
	}
	return analysis, nil
}

// BuildAnalysisPrompt renders the user prompt for one document.
func BuildAnalysisPrompt(text string, similar []domain.VectorMatch) string {
	var sb strings.Builder

	if len(similar) > 0 {
		fmt.Fprintf(&sb, "CONTEXT: You have analyzed %d similar documents before:\n\n", len(similar))
		for i, m := range similar {
			fmt.Fprintf(&sb, "Similar Document %d (%d%% similar):\n", i+1, similarityPercent(m.Similarity))
			fmt.Fprintf(&sb, "- Type: %s\n", orDefault(m.MetaString(domain.MetaDocumentType), "Unknown"))
			fmt.Fprintf(&sb, "- File: %s\n", orDefault(m.MetaString(domain.MetaFileName), "Unknown"))
			if score, ok := m.MetaNumber(domain.MetaRiskScore); ok {
				fmt.Fprintf(&sb, "- Risk Score: %d\n", int(math.Round(score)))
			} else {
				sb.WriteString("- Risk Score: Not analyzed\n")
			}
			if issues := m.MetaStrings(domain.MetaKeyIssues); len(issues) > 0 {
				fmt.Fprintf(&sb, "- Key Issues: %s\n", strings.Join(issues, ", "))
			} else {
				sb.WriteString("- Key Issues: None recorded\n")
			}
			fmt.Fprintf(&sb, "- Date: %s\n\n", formatMetaDate(m.MetaString(domain.MetaCreatedAt)))
		}
		sb.WriteString("IMPORTANT:\n")
		sb.WriteString("- Compare this new document to the similar ones above\n")
		sb.WriteString("- Mention specific comparisons like \"Unlike Document 1 which had X issue, this document...\"\n")
		sb.WriteString("- If you see patterns, mention them: \"Like your previous NDAs, this document also...\"\n")
		sb.WriteString("- Be MORE SPECIFIC because you have context from similar documents\n")
	} else {
		sb.WriteString("CONTEXT: This appears to be your first document of this type, so provide a thorough baseline analysis.\n")
	}

	sb.WriteString("\nYou are a legal document analysis expert. Analyze the following legal document and provide a comprehensive analysis.\n\n")
	sb.WriteString("IMPORTANT: Return ONLY a valid JSON object with no additional text, markdown formatting, or code blocks.\n\n")
	sb.WriteString("The JSON should have this exact structure:\n")
	sb.WriteString(analysisSchema)
	sb.WriteString("\n\nDocument to analyze:\n")
	sb.WriteString(domain.TruncateRunes(text, MaxPromptDocumentChars))
	sb.WriteString("\n")

	return sb.String()
}

func similarityPercent(s float64) int {
	return int(math.Round(domain.ClampSimilarity(s) * 100))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func formatMetaDate(s string) string {
	if s == "" {
		return "Unknown"
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}
