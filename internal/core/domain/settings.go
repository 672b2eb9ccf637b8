package domain

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider   AIProvider `json:"provider"`
	Model      string     `json:"model"`
	Dimensions int        `json:"dimensions"`
	APIKey     string     `json:"-"` // Never serialize to JSON
	BaseURL    string     `json:"base_url,omitempty"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	return e.APIKey != ""
}

// LLMSettings configures the reasoning model used for analysis
type LLMSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	APIKey   string     `json:"-"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	return l.APIKey != ""
}

// CompletionRequest is a single-turn request to a reasoning model
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSONOnly asks the provider to constrain output to a JSON object when it can.
	JSONOnly bool
}
