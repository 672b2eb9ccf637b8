package domain

import "strings"

// DefaultDocumentType is returned when no rule matches
const DefaultDocumentType = "Legal Document"

type documentTypeRule struct {
	docType string
	matches func(content string) bool
}

func containsAny(words ...string) func(string) bool {
	return func(content string) bool {
		for _, w := range words {
			if strings.Contains(content, w) {
				return true
			}
		}
		return false
	}
}

func containsAll(words ...string) func(string) bool {
	return func(content string) bool {
		for _, w := range words {
			if !strings.Contains(content, w) {
				return false
			}
		}
		return true
	}
}

// Order is significant: the first matching rule wins.
var documentTypeRules = []documentTypeRule{
	{"NDA", containsAny("non-disclosure", "confidentiality")},
	{"Employment Contract", containsAny("employment", "job", "salary")},
	{"Service Agreement", containsAll("service", "agreement")},
	{"Lease Agreement", containsAny("lease", "rental")},
	{"Purchase Agreement", containsAny("purchase", "sale")},
	{"License Agreement", containsAny("license")},
}

// DetectDocumentType classifies text with case-insensitive keyword checks.
func DetectDocumentType(text string) string {
	content := strings.ToLower(text)
	for _, rule := range documentTypeRules {
		if rule.matches(content) {
			return rule.docType
		}
	}
	return DefaultDocumentType
}
