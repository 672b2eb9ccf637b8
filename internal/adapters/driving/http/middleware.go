package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Context keys
type contextKey string

const authContextKey contextKey = "auth_context"

// AuthMiddleware verifies access tokens issued by the account service
type AuthMiddleware struct {
	tokens driven.AuthAdapter
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(tokens driven.AuthAdapter) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
	}
}

// Authenticate validates the request token and adds auth context.
// A missing token is 401; an invalid or expired one is 403.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "access token required")
			return
		}

		claims, err := m.tokens.ParseToken(token)
		if err != nil {
			if errors.Is(err, domain.ErrTokenExpired) {
				writeError(w, http.StatusForbidden, "token expired")
			} else {
				writeError(w, http.StatusForbidden, "invalid token")
			}
			return
		}

		// Add auth context to request context
		ctx := context.WithValue(r.Context(), authContextKey, claims.ToAuthContext())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext retrieves the auth context from request context
func GetAuthContext(ctx context.Context) *domain.AuthContext {
	if ctx == nil {
		return nil
	}
	authCtx, ok := ctx.Value(authContextKey).(*domain.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// extractBearerToken extracts the Bearer token from Authorization header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// Logging middleware

// LoggingMiddleware logs HTTP requests
type LoggingMiddleware struct {
	logger *slog.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware
func NewLoggingMiddleware(logger *slog.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMiddleware{logger: logger}
}

// Handler wraps an http.Handler with request logging
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Recovery middleware

// RecoveryMiddleware recovers from panics
type RecoveryMiddleware struct {
	logger *slog.Logger
}

// NewRecoveryMiddleware creates a new RecoveryMiddleware
func NewRecoveryMiddleware(logger *slog.Logger) *RecoveryMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryMiddleware{logger: logger}
}

// Handler wraps an http.Handler with panic recovery
func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				m.logger.Error("panic recovered", "panic", err, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS middleware

// CORSMiddleware handles CORS
type CORSMiddleware struct {
	allowedOrigins []string
}

// NewCORSMiddleware creates a new CORSMiddleware
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	return &CORSMiddleware{
		allowedOrigins: allowedOrigins,
	}
}

// Handler wraps an http.Handler with CORS headers
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, o := range m.allowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// Handle preflight
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
