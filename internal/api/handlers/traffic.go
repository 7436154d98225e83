package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/narvanalabs/mocktraffic/internal/api/errors"
	"github.com/narvanalabs/mocktraffic/internal/traffic"
)

// TrafficHandler switches traffic generation on and off.
type TrafficHandler struct {
	generator *traffic.Generator
	logger    *slog.Logger
}

// NewTrafficHandler creates a new traffic handler.
func NewTrafficHandler(generator *traffic.Generator, logger *slog.Logger) *TrafficHandler {
	return &TrafficHandler{
		generator: generator,
		logger:    logger,
	}
}

// Start handles POST /v1/traffic/start.
func (h *TrafficHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

// Stop handles POST /v1/traffic/stop.
func (h *TrafficHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *TrafficHandler) toggle(w http.ResponseWriter, r *http.Request, enabled bool) {
	if err := h.generator.SetEnabled(r.Context(), enabled); err != nil {
		requestLogger(r, h.logger).Error("failed to switch traffic", "enabled", enabled, "error", err)
		writeStoreError(w, r, "Failed to update traffic state", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, h.generator.Stats())
}
