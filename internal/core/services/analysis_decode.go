package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// AnalysisValidationError reports a model response that could not be turned
// into an Analysis.
type AnalysisValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *AnalysisValidationError) Error() string {
	msg := "invalid analysis response"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AnalysisValidationError) Unwrap() error {
	return e.Err
}

type wireAnalysis struct {
	RiskScore       json.RawMessage      `json:"riskScore"`
	OverallSummary  string               `json:"overallSummary"`
	PlainEnglish    string               `json:"plainEnglish"`
	KeyTerms        lenientStrings       `json:"keyTerms"`
	RiskFactors     []wireRiskFactor     `json:"riskFactors"`
	Recommendations []wireRecommendation `json:"recommendations"`
	Clauses         []wireClause         `json:"clauses"`
}

type wireRiskFactor struct {
	Factor      lenientString `json:"factor"`
	Severity    lenientString `json:"severity"`
	Explanation lenientString `json:"explanation"`
}

type wireRecommendation struct {
	Category   lenientString `json:"category"`
	Suggestion lenientString `json:"suggestion"`
	Priority   lenientString `json:"priority"`
}

type wireClause struct {
	Type        lenientString  `json:"type"`
	Content     lenientString  `json:"content"`
	RiskLevel   lenientString  `json:"riskLevel"`
	Explanation lenientString  `json:"explanation"`
	Suggestions lenientStrings `json:"suggestions"`
	Position    wirePosition   `json:"position"`
}

type wirePosition struct {
	Page    lenientInt    `json:"page"`
	Section lenientString `json:"section"`
}

// UnmarshalJSON ignores positions that are not objects.
func (p *wirePosition) UnmarshalJSON(data []byte) error {
	var obj struct {
		Page    lenientInt    `json:"page"`
		Section lenientString `json:"section"`
	}
	if json.Unmarshal(data, &obj) != nil {
		*p = wirePosition{}
		return nil
	}
	*p = wirePosition(obj)
	return nil
}

// lenientInt accepts a number or a numeric string and rounds it.
// Anything else decodes to 0.
type lenientInt int

func (n *lenientInt) UnmarshalJSON(data []byte) error {
	*n = 0
	var f float64
	if json.Unmarshal(data, &f) != nil {
		var s string
		if json.Unmarshal(data, &s) != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	*n = lenientInt(math.Round(f))
	return nil
}

// lenientString keeps strings, renders numbers and booleans as their JSON
// text, and decodes anything else to "".
type lenientString string

func (s *lenientString) UnmarshalJSON(data []byte) error {
	*s = lenientString(scalarText(data))
	return nil
}

// lenientStrings keeps the scalar entries of an array and drops the rest.
// A bare scalar becomes a one-element list.
type lenientStrings []string

func (l *lenientStrings) UnmarshalJSON(data []byte) error {
	*l = nil
	var items []json.RawMessage
	if json.Unmarshal(data, &items) != nil {
		if text := scalarText(data); text != "" {
			*l = lenientStrings{text}
		}
		return nil
	}
	out := make(lenientStrings, 0, len(items))
	for _, item := range items {
		if text := scalarText(item); text != "" {
			out = append(out, text)
		}
	}
	*l = out
	return nil
}

func scalarText(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	switch data[0] {
	case '"':
		var s string
		if json.Unmarshal(data, &s) != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		// numbers and booleans
		return string(data)
	}
}

// DecodeAnalysis turns a raw model response into a normalised Analysis.
// Markdown fences are stripped, and when the text around the JSON object is
// not valid the outermost {...} slice is tried. Enumerations are coerced here.
func DecodeAnalysis(raw string) (*domain.Analysis, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, &AnalysisValidationError{Reason: "empty response"}
	}

	var wire wireAnalysis
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return nil, &AnalysisValidationError{Reason: "no JSON object", Err: err}
		}
		wire = wireAnalysis{}
		if err := json.Unmarshal([]byte(body[start:end+1]), &wire); err != nil {
			return nil, &AnalysisValidationError{Reason: "malformed JSON", Err: err}
		}
	}

	score, err := parseRiskScore(wire.RiskScore)
	if err != nil {
		return nil, err
	}

	analysis := &domain.Analysis{
		RiskScore:       score,
		OverallSummary:  wire.OverallSummary,
		PlainEnglish:    wire.PlainEnglish,
		KeyTerms:        []string(wire.KeyTerms),
		RiskFactors:     make([]domain.RiskFactor, 0, len(wire.RiskFactors)),
		Recommendations: make([]domain.Recommendation, 0, len(wire.Recommendations)),
		Clauses:         make([]domain.Clause, 0, len(wire.Clauses)),
	}
	for _, rf := range wire.RiskFactors {
		analysis.RiskFactors = append(analysis.RiskFactors, domain.RiskFactor{
			Factor:      string(rf.Factor),
			Severity:    domain.ParseSeverity(string(rf.Severity)),
			Explanation: string(rf.Explanation),
		})
	}
	for _, rec := range wire.Recommendations {
		analysis.Recommendations = append(analysis.Recommendations, domain.Recommendation{
			Category:   string(rec.Category),
			Suggestion: string(rec.Suggestion),
			Priority:   domain.ParsePriority(string(rec.Priority)),
		})
	}
	for _, c := range wire.Clauses {
		clause := domain.Clause{
			Type:        domain.CoerceClauseType(string(c.Type)),
			Content:     string(c.Content),
			RiskLevel:   domain.ParseSeverity(string(c.RiskLevel)),
			Explanation: string(c.Explanation),
			Suggestions: []string(c.Suggestions),
			Position: domain.ClausePosition{
				Page:    int(c.Position.Page),
				Section: domain.DefaultClauseSection,
			},
		}
		if section := strings.TrimSpace(string(c.Position.Section)); section != "" {
			clause.Position.Section = section
		}
		analysis.Clauses = append(analysis.Clauses, clause)
	}

	analysis.Normalize()
	return analysis, nil
}

// parseRiskScore accepts a JSON number or a numeric string, rounds it and
// clamps it to 0..100.
func parseRiskScore(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, &AnalysisValidationError{Field: "riskScore", Reason: "required"}
	}

	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, &AnalysisValidationError{Field: "riskScore", Reason: "not a number", Err: err}
		}
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if perr != nil {
			return 0, &AnalysisValidationError{Field: "riskScore", Reason: fmt.Sprintf("not a number: %q", s)}
		}
		value = parsed
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &AnalysisValidationError{Field: "riskScore", Reason: "not finite"}
	}

	value = math.Max(domain.MinRiskScore, math.Min(domain.MaxRiskScore, math.Round(value)))
	return int(value), nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
