package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Ensure Adapter implements AuthAdapter
var _ driven.AuthAdapter = (*Adapter)(nil)

// jwtClaims wraps domain.TokenClaims for JWT compatibility.
// The claim names match the tokens issued by the account service.
type jwtClaims struct {
	UserID         string      `json:"userId"`
	Email          string      `json:"email,omitempty"`
	Role           domain.Role `json:"role,omitempty"`
	OrganizationID string      `json:"organizationId,omitempty"`
	jwt.RegisteredClaims
}

// Adapter verifies HS256 access tokens
type Adapter struct {
	jwtSecret []byte
}

// NewAdapter creates a new auth adapter with the given JWT secret
func NewAdapter(jwtSecret string) *Adapter {
	return &Adapter{
		jwtSecret: []byte(jwtSecret),
	}
}

// GenerateToken creates a signed JWT from domain claims
func (a *Adapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	jc := jwtClaims{
		UserID:         claims.UserID,
		Email:          claims.Email,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
	}
	if claims.IssuedAt != 0 {
		jc.IssuedAt = jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0))
	}
	if claims.ExpiresAt != 0 {
		jc.ExpiresAt = jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jc)
	return token.SignedString(a.jwtSecret)
}

// ParseToken validates a JWT and extracts domain claims.
// Returns domain.ErrTokenExpired or domain.ErrTokenInvalid.
func (a *Adapter) ParseToken(tokenString string) (*domain.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}

	out := &domain.TokenClaims{
		UserID:         claims.UserID,
		Email:          claims.Email,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return out, nil
}
