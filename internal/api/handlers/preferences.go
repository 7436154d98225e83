package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/narvanalabs/mocktraffic/internal/api/errors"
	"github.com/narvanalabs/mocktraffic/internal/models"
	"github.com/narvanalabs/mocktraffic/internal/preferences"
)

// PreferencesHandler exposes the DoH preferences and provider list.
type PreferencesHandler struct {
	prefs  *preferences.Service
	logger *slog.Logger
}

// NewPreferencesHandler creates a new preferences handler.
func NewPreferencesHandler(prefs *preferences.Service, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		prefs:  prefs,
		logger: logger,
	}
}

// DoHRequest is the body of PUT /v1/preferences/doh. Omitted fields are left unchanged.
type DoHRequest struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Provider *string `json:"provider,omitempty"`
}

// ProvidersResponse lists the selectable DoH providers.
type ProvidersResponse struct {
	Providers []models.DoHProvider `json:"providers"`
	Selected  string               `json:"selected"`
}

// Get handles GET /v1/preferences.
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.prefs.Load(r.Context())
	if err != nil {
		requestLogger(r, h.logger).Error("failed to load preferences", "error", err)
		writeStoreError(w, r, "Failed to load preferences", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, prefs)
}

// UpdateDoH handles PUT /v1/preferences/doh.
func (h *PreferencesHandler) UpdateDoH(w http.ResponseWriter, r *http.Request) {
	var req DoHRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled == nil && req.Provider == nil {
		apierrors.Write(w, r, apierrors.NewValidationError("Nothing to update"))
		return
	}

	ctx := r.Context()
	if req.Provider != nil {
		if err := h.prefs.SetDoHProvider(ctx, *req.Provider); err != nil {
			if errors.Is(err, preferences.ErrUnknownProvider) {
				apierrors.Write(w, r, apierrors.NewValidationError("Unknown DoH provider").WithDetails(map[string]any{"field": "provider"}))
				return
			}
			requestLogger(r, h.logger).Error("failed to set DoH provider", "error", err)
			writeStoreError(w, r, "Failed to save preferences", err)
			return
		}
	}
	if req.Enabled != nil {
		if err := h.prefs.SetDoHEnabled(ctx, *req.Enabled); err != nil {
			requestLogger(r, h.logger).Error("failed to toggle DoH", "error", err)
			writeStoreError(w, r, "Failed to save preferences", err)
			return
		}
	}

	h.Get(w, r)
}

// Providers handles GET /v1/providers.
func (h *PreferencesHandler) Providers(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.prefs.Load(r.Context())
	if err != nil {
		requestLogger(r, h.logger).Error("failed to load preferences", "error", err)
		writeStoreError(w, r, "Failed to load preferences", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, ProvidersResponse{
		Providers: models.DoHProviders,
		Selected:  prefs.DoHProvider,
	})
}
