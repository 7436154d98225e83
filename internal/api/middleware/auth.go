package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/narvanalabs/mocktraffic/internal/api/errors"
	"github.com/narvanalabs/mocktraffic/internal/auth"
)

type contextKey string

// SubjectKey is the context key for the authenticated token subject.
const SubjectKey contextKey = "subject"

// GetSubject extracts the authenticated subject from the request context.
func GetSubject(ctx context.Context) string {
	if v, ok := ctx.Value(SubjectKey).(string); ok {
		return v
	}
	return ""
}

// AuthMiddleware validates Bearer JWTs.
type AuthMiddleware struct {
	authService *auth.Service
	disabled    bool
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware. When disabled
// is true every request passes as the admin subject.
func NewAuthMiddleware(authService *auth.Service, disabled bool, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{
		authService: authService,
		disabled:    disabled,
		logger:      logger,
	}
}

// Authenticate is a middleware that validates JWT tokens from the
// Authorization header.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			ctx := context.WithValue(r.Context(), SubjectKey, auth.AdminSubject)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			apierrors.Write(w, r, apierrors.NewUnauthorizedError("Missing authentication"))
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			m.logger.Debug("JWT validation failed", "error", err)
			if errors.Is(err, auth.ErrExpiredToken) {
				apierrors.Write(w, r, apierrors.NewUnauthorizedError("Token has expired"))
				return
			}
			apierrors.Write(w, r, apierrors.NewUnauthorizedError("Invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), SubjectKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
