// This file implements the billing checkout endpoint.
//
// Route:
//   - POST /api/billing/checkout -> HandleCheckout (auth required)
package handler

import (
	"log/slog"
	"net/http"

	"github.com/mlecomte/homeworkai/internal/auth"
	"github.com/mlecomte/homeworkai/internal/billing"
)

// BillingHandler creates Stripe Checkout sessions for the premium plan.
type BillingHandler struct {
	billing billing.Service
	baseURL string
	logger  *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured; checkout
// then returns 503.
func NewBillingHandler(billingService billing.Service, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing: billingService,
		baseURL: baseURL,
		logger:  logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(h.HandleCheckout)))
}

// HandleCheckout creates a subscription checkout session and returns
// the Stripe-hosted URL for the client to redirect to.
func (h *BillingHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Billing is not configured")
		return
	}

	user := auth.GetUser(r.Context())

	url, err := h.billing.CreateCheckoutSession(
		user.ID.String(),
		user.Email,
		h.baseURL+"/?upgrade=success",
		h.baseURL+"/?upgrade=cancelled",
	)
	if err != nil {
		h.logger.Error("failed to create checkout session", "user_id", user.ID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Could not start checkout. Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
