package domain

// Role is a user's role as carried in the access token
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "USER"
)

// AuthContext contains authenticated user info for request context.
// The pipeline trusts UserID as the document owner without re-validating it.
type AuthContext struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// IsAdmin checks if the authenticated user is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// TokenClaims represents the JWT token payload. Tokens are issued by the
// account service; this service only verifies them.
type TokenClaims struct {
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organizationId,omitempty"`
	IssuedAt       int64  `json:"iat"`
	ExpiresAt      int64  `json:"exp"`
}

// ToAuthContext converts verified claims into a request auth context
func (c *TokenClaims) ToAuthContext() *AuthContext {
	return &AuthContext{
		UserID:         c.UserID,
		Email:          c.Email,
		Role:           c.Role,
		OrganizationID: c.OrganizationID,
	}
}
