package domain

import (
	"strings"
	"time"
)

// Severity grades a risk factor
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity upper-cases s and maps unknown values to MEDIUM.
func ParseSeverity(s string) Severity {
	switch v := Severity(strings.ToUpper(strings.TrimSpace(s))); v {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return v
	}
	return SeverityMedium
}

// Priority grades a recommendation
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority upper-cases s and maps unknown values to MEDIUM.
func ParsePriority(s string) Priority {
	switch v := Priority(strings.ToUpper(strings.TrimSpace(s))); v {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return v
	}
	return PriorityMedium
}

// ClauseType is the fixed clause classification
type ClauseType string

const (
	ClauseTypeTermination          ClauseType = "TERMINATION"
	ClauseTypePayment              ClauseType = "PAYMENT"
	ClauseTypeLiability            ClauseType = "LIABILITY"
	ClauseTypeConfidentiality      ClauseType = "CONFIDENTIALITY"
	ClauseTypeIntellectualProperty ClauseType = "INTELLECTUAL_PROPERTY"
	ClauseTypeDisputeResolution    ClauseType = "DISPUTE_RESOLUTION"
	ClauseTypeForceMajeure         ClauseType = "FORCE_MAJEURE"
	ClauseTypeOther                ClauseType = "OTHER"
)

// ClauseTypes lists every valid clause type
var ClauseTypes = []ClauseType{
	ClauseTypeTermination,
	ClauseTypePayment,
	ClauseTypeLiability,
	ClauseTypeConfidentiality,
	ClauseTypeIntellectualProperty,
	ClauseTypeDisputeResolution,
	ClauseTypeForceMajeure,
	ClauseTypeOther,
}

// IsValid checks t against the fixed enumeration. Matching is exact.
func (t ClauseType) IsValid() bool {
	for _, ct := range ClauseTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// CoerceClauseType returns t when valid and OTHER otherwise.
func CoerceClauseType(t string) ClauseType {
	ct := ClauseType(t)
	if ct.IsValid() {
		return ct
	}
	return ClauseTypeOther
}

// RiskFactor is one risk the analysis identified
type RiskFactor struct {
	ID          string   `json:"id,omitempty"`
	Factor      string   `json:"factor"`
	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
}

// Recommendation is a suggested change or action
type Recommendation struct {
	ID         string   `json:"id,omitempty"`
	Category   string   `json:"category"`
	Suggestion string   `json:"suggestion"`
	Priority   Priority `json:"priority"`
}

// ClausePosition locates a clause in the source document
type ClausePosition struct {
	Page    int    `json:"page"`
	Section string `json:"section"`
}

// DefaultClauseSection is used when the model does not locate a clause
const DefaultClauseSection = "N/A"

// Clause is an extracted, classified contract clause
type Clause struct {
	ID          string         `json:"id,omitempty"`
	Type        ClauseType     `json:"type"`
	Content     string         `json:"content"`
	RiskLevel   Severity       `json:"riskLevel"`
	Explanation string         `json:"explanation"`
	Suggestions []string       `json:"suggestions"`
	Position    ClausePosition `json:"position"`
}

// Analysis is the structured risk analysis of one document.
// ID, DocumentID and CreatedAt are assigned when it is persisted.
type Analysis struct {
	ID              string           `json:"id,omitempty"`
	DocumentID      string           `json:"documentId,omitempty"`
	RiskScore       int              `json:"riskScore"`
	OverallSummary  string           `json:"overallSummary"`
	PlainEnglish    string           `json:"plainEnglish"`
	KeyTerms        []string         `json:"keyTerms"`
	RiskFactors     []RiskFactor     `json:"riskFactors"`
	Recommendations []Recommendation `json:"recommendations"`
	Clauses         []Clause         `json:"clauses"`
	CreatedAt       time.Time        `json:"createdAt,omitempty"`
}

// Risk score bounds and the neutral score used by the fallback analysis
const (
	MinRiskScore     = 0
	MaxRiskScore     = 100
	NeutralRiskScore = 50
)

// ClampRiskScore bounds a score to [MinRiskScore, MaxRiskScore].
func ClampRiskScore(score int) int {
	if score < MinRiskScore {
		return MinRiskScore
	}
	if score > MaxRiskScore {
		return MaxRiskScore
	}
	return score
}

// FallbackAnalysis is the deterministic result used when the reasoning model
// cannot produce a valid structured analysis.
func FallbackAnalysis() *Analysis {
	return &Analysis{
		RiskScore:       NeutralRiskScore,
		OverallSummary:  "Basic analysis without similar context.",
		PlainEnglish:    "This is a default fallback summary.",
		KeyTerms:        []string{},
		RiskFactors:     []RiskFactor{},
		Recommendations: []Recommendation{},
		Clauses:         []Clause{},
	}
}

// Normalize applies the persistence invariants in place: score in range,
// clause types in the enumeration, no nil lists.
func (a *Analysis) Normalize() {
	a.RiskScore = ClampRiskScore(a.RiskScore)
	if a.KeyTerms == nil {
		a.KeyTerms = []string{}
	}
	if a.RiskFactors == nil {
		a.RiskFactors = []RiskFactor{}
	}
	if a.Recommendations == nil {
		a.Recommendations = []Recommendation{}
	}
	if a.Clauses == nil {
		a.Clauses = []Clause{}
	}
	for i := range a.Clauses {
		a.Clauses[i].Type = CoerceClauseType(string(a.Clauses[i].Type))
		if a.Clauses[i].Suggestions == nil {
			a.Clauses[i].Suggestions = []string{}
		}
		if a.Clauses[i].Position.Section == "" {
			a.Clauses[i].Position.Section = DefaultClauseSection
		}
	}
}

// KeyIssues returns the risk factor names, in order.
func (a *Analysis) KeyIssues() []string {
	issues := make([]string, 0, len(a.RiskFactors))
	for _, rf := range a.RiskFactors {
		issues = append(issues, rf.Factor)
	}
	return issues
}
