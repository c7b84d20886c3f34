// This file implements the usage endpoints.
//
// Routes:
//   - GET  /api/usage       -> HandleUsage (auth required)
//   - POST /api/usage/reset -> HandleReset (auth required)
package handler

import (
	"log/slog"
	"net/http"

	"github.com/mlecomte/homeworkai/internal/service"
)

// UsageHandler exposes the credit summary and the debug reset.
type UsageHandler struct {
	usageService service.UsageService
	logger       *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usageService service.UsageService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
		logger:       logger,
	}
}

// RegisterRoutes registers usage routes on the provided mux.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.HandleUsage)))
	mux.Handle("POST /api/usage/reset", requireUser(http.HandlerFunc(h.HandleReset)))
}

// HandleUsage returns the current credit summary.
func (h *UsageHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	summary, err := h.usageService.Usage(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleReset zeroes today's counter for the current user. Surfaced in
// the account menu as a debug affordance.
func (h *UsageHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.usageService.ResetUsage(r.Context()); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
