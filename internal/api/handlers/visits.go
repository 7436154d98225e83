package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/narvanalabs/mocktraffic/internal/api/errors"
	"github.com/narvanalabs/mocktraffic/internal/models"
	"github.com/narvanalabs/mocktraffic/internal/store"
)

// Visit history page sizes.
const (
	DefaultVisitLimit = 50
	MaxVisitLimit     = 500
)

// VisitHandler lists visit history.
type VisitHandler struct {
	visits store.VisitStore
	logger *slog.Logger
}

// NewVisitHandler creates a new visit handler.
func NewVisitHandler(visits store.VisitStore, logger *slog.Logger) *VisitHandler {
	return &VisitHandler{
		visits: visits,
		logger: logger,
	}
}

// VisitListResponse is a page of recent visits.
type VisitListResponse struct {
	Visits []*models.Visit `json:"visits"`
	Total  int             `json:"total"`
}

// List handles GET /v1/visits?limit=N. The limit defaults to 50 and is capped at 500.
func (h *VisitHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := DefaultVisitLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			apierrors.Write(w, r, apierrors.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = min(n, MaxVisitLimit)
	}

	ctx := r.Context()
	visits, err := h.visits.ListRecent(ctx, limit)
	if err != nil {
		requestLogger(r, h.logger).Error("failed to list visits", "error", err)
		writeStoreError(w, r, "Failed to list visits", err)
		return
	}
	total, err := h.visits.Count(ctx)
	if err != nil {
		requestLogger(r, h.logger).Error("failed to count visits", "error", err)
		writeStoreError(w, r, "Failed to list visits", err)
		return
	}
	if visits == nil {
		visits = []*models.Visit{}
	}

	apierrors.WriteJSON(w, http.StatusOK, VisitListResponse{Visits: visits, Total: total})
}
