package domain

import (
	"testing"
	"time"
)

func TestAuthContextIsAdmin(t *testing.T) {
	tests := []struct {
		role     Role
		expected bool
	}{
		{RoleAdmin, true},
		{RoleMember, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			ctx := &AuthContext{Role: tt.role}
			if ctx.IsAdmin() != tt.expected {
				t.Errorf("expected IsAdmin() = %v for role %s", tt.expected, tt.role)
			}
		})
	}
}

func TestTokenClaims_ToAuthContext(t *testing.T) {
	now := time.Now()
	claims := &TokenClaims{
		UserID:         "user-123",
		Email:          "test@example.com",
		Role:           RoleMember,
		OrganizationID: "org-9",
		IssuedAt:       now.Unix(),
		ExpiresAt:      now.Add(24 * time.Hour).Unix(),
	}

	authCtx := claims.ToAuthContext()

	if authCtx.UserID != "user-123" {
		t.Errorf("expected UserID user-123, got %s", authCtx.UserID)
	}
	if authCtx.Email != "test@example.com" {
		t.Errorf("expected email test@example.com, got %s", authCtx.Email)
	}
	if authCtx.Role != RoleMember {
		t.Errorf("expected role USER, got %s", authCtx.Role)
	}
	if authCtx.OrganizationID != "org-9" {
		t.Errorf("expected organization org-9, got %s", authCtx.OrganizationID)
	}
}
