package driven

import "github.com/custodia-labs/lexcheck/internal/core/domain"

// AuthAdapter handles access token cryptography.
// Tokens are issued by the account service; this service verifies them.
type AuthAdapter interface {
	// GenerateToken signs claims. Used by tooling and tests.
	GenerateToken(claims *domain.TokenClaims) (string, error)

	// ParseToken verifies a token and returns its claims
	ParseToken(token string) (*domain.TokenClaims, error)
}
