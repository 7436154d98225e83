package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/narvanalabs/mocktraffic/internal/api/errors"
	"github.com/narvanalabs/mocktraffic/internal/models"
	"github.com/narvanalabs/mocktraffic/internal/preferences"
)

// URLHandler manages the target URL list.
type URLHandler struct {
	prefs  *preferences.Service
	logger *slog.Logger
}

// NewURLHandler creates a new URL handler.
func NewURLHandler(prefs *preferences.Service, logger *slog.Logger) *URLHandler {
	return &URLHandler{
		prefs:  prefs,
		logger: logger,
	}
}

// URLRequest is the body of POST /v1/urls.
type URLRequest struct {
	URL string `json:"url"`
}

// URLListResponse lists the stored target URLs.
type URLListResponse struct {
	URLs []string `json:"urls"`
}

// List handles GET /v1/urls.
func (h *URLHandler) List(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.prefs.Load(r.Context())
	if err != nil {
		requestLogger(r, h.logger).Error("failed to load urls", "error", err)
		writeStoreError(w, r, "Failed to load URLs", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, URLListResponse{URLs: prefs.URLs})
}

// Add handles POST /v1/urls.
func (h *URLHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	added, err := h.prefs.AddURL(r.Context(), req.URL)
	switch {
	case errors.Is(err, models.ErrEmptyURL):
		apierrors.Write(w, r, apierrors.NewValidationError("Enter a URL").WithDetails(map[string]any{"field": "url"}))
		return
	case errors.Is(err, models.ErrInvalidURL):
		apierrors.Write(w, r, apierrors.NewValidationError("Invalid HTTPS URL").WithDetails(map[string]any{"field": "url"}))
		return
	case errors.Is(err, preferences.ErrDuplicateURL):
		apierrors.Write(w, r, apierrors.NewConflictError("URL already exists"))
		return
	case err != nil:
		requestLogger(r, h.logger).Error("failed to add url", "error", err)
		writeStoreError(w, r, "Failed to add URL", err)
		return
	}

	apierrors.WriteJSON(w, http.StatusCreated, URLRequest{URL: added})
}

// Clear handles DELETE /v1/urls.
func (h *URLHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.prefs.ClearURLs(r.Context()); err != nil {
		requestLogger(r, h.logger).Error("failed to clear urls", "error", err)
		writeStoreError(w, r, "Failed to clear URLs", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
