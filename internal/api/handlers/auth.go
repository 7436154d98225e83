package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/narvanalabs/mocktraffic/internal/api/errors"
	"github.com/narvanalabs/mocktraffic/internal/auth"
)

// AuthHandler handles admin login.
type AuthHandler struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		apierrors.Write(w, r, apierrors.NewValidationError("Password is required"))
		return
	}

	token, err := h.authService.Login(req.Password)
	switch {
	case errors.Is(err, auth.ErrNoPassword):
		apierrors.Write(w, r, apierrors.NewNotFoundError("Admin login is not configured"))
		return
	case errors.Is(err, auth.ErrInvalidPassword):
		requestLogger(r, h.logger).Warn("failed login attempt", "remote_addr", r.RemoteAddr)
		apierrors.Write(w, r, apierrors.NewUnauthorizedError("Invalid password"))
		return
	case err != nil:
		requestLogger(r, h.logger).Error("failed to generate token", "error", err)
		writeInternal(w, r, "Failed to generate token")
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, LoginResponse{Token: token})
}
