// This file implements the Stripe webhook handler.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it
// directly. Authentication is the webhook signature.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/mlecomte/homeworkai/internal/billing"
	"github.com/mlecomte/homeworkai/internal/domain"
	"github.com/mlecomte/homeworkai/internal/metrics"
	"github.com/mlecomte/homeworkai/internal/repository"
	"github.com/mlecomte/homeworkai/internal/service"
)

// maxWebhookBodyBytes bounds webhook payloads (Stripe events are small).
const maxWebhookBodyBytes = 65536

// WebhookHandler processes billing events from Stripe.
//
// Tier flips happen here and only here: the checkout endpoint never
// mutates the profile, so a user who abandons checkout stays free.
type WebhookHandler struct {
	billing billing.Service
	store   service.ProfileStore
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, store service.ProfileStore, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing: billingService,
		store:   store,
		logger:  logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies the signature and dispatches the event.
//
// Status codes drive Stripe's retry behavior: 200 means "handled or
// deliberately ignored", 400 means "never worth retrying" (bad
// signature), 500 means "retry later" (store write failed).
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	var handleErr error
	switch event.Type {
	case "checkout.session.completed":
		handleErr = h.handleCheckoutCompleted(r.Context(), event)
	case "customer.subscription.deleted":
		handleErr = h.handleSubscriptionDeleted(r.Context(), event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if handleErr != nil {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "failed").Inc()
		h.logger.Error("webhook processing failed",
			"type", event.Type, "id", event.ID, "error", handleErr)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	metrics.WebhookEvents.WithLabelValues(string(event.Type), "processed").Inc()
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted flips the paying user to premium.
//
// The user is identified by the userId metadata stamped on the checkout
// session at creation; a session without it is logged and acknowledged
// so Stripe does not retry an event we can never process.
func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return nil
	}

	rawUserID, ok := session.Metadata[billing.MetadataUserIDKey]
	if !ok || rawUserID == "" {
		h.logger.Warn("checkout session missing user metadata", "session_id", session.ID)
		return nil
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		h.logger.Warn("checkout session has malformed user metadata",
			"session_id", session.ID, "user_id", rawUserID)
		return nil
	}

	var customerID, subscriptionID string
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}

	err = h.store.UpdateProfileSubscription(ctx, userID, domain.TierPremium, customerID, subscriptionID)
	if errors.Is(err, repository.ErrNotFound) {
		// First contact through billing before any chat turn: create
		// the row, then flip it.
		if _, createErr := h.store.CreateProfile(ctx, &domain.Profile{
			ID:   userID,
			Tier: domain.TierFree,
		}); createErr != nil {
			return createErr
		}
		err = h.store.UpdateProfileSubscription(ctx, userID, domain.TierPremium, customerID, subscriptionID)
	}
	if err != nil {
		return err
	}

	h.logger.Info("user upgraded to premium",
		"user_id", userID, "customer_id", customerID, "subscription_id", subscriptionID)
	return nil
}

// handleSubscriptionDeleted drops a cancelled subscriber back to free.
func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err)
		return nil
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID)
		return nil
	}

	profile, err := h.store.GetProfileByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.logger.Warn("no profile for cancelled subscription",
				"customer_id", sub.Customer.ID, "subscription_id", sub.ID)
			return nil
		}
		return err
	}

	if err := h.store.UpdateProfileSubscription(ctx, profile.ID, domain.TierFree, sub.Customer.ID, ""); err != nil {
		return err
	}

	h.logger.Info("user downgraded to free",
		"user_id", profile.ID, "subscription_id", sub.ID)
	return nil
}
