// Package billing provides Stripe billing integration for the premium
// subscription.
package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// MetadataUserIDKey is the checkout-session metadata key carrying the
// internal user ID; the webhook reads it back to know which profile to
// upgrade.
const MetadataUserIDKey = "userId"

// Service defines the interface for billing operations.
type Service interface {
	// CreateCheckoutSession creates a subscription-mode Stripe Checkout
	// session for the premium plan and returns the URL to redirect the
	// user to. The user ID is attached as session metadata.
	CreateCheckoutSession(userID, email, successURL, cancelURL string) (string, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and
	// returns the parsed event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// PriceConfig describes the premium plan's inline pricing.
// The product is created on the fly via price_data rather than a
// pre-provisioned Stripe price, so a fresh Stripe account works with
// zero dashboard setup.
type PriceConfig struct {
	ProductName        string
	ProductDescription string
	UnitAmountCents    int64
	Currency           string
}

// DefaultPremiumPrice is the premium plan as sold in production.
var DefaultPremiumPrice = PriceConfig{
	ProductName:        "HomeworkAI Premium",
	ProductDescription: "Unlimited questions and exclusive features",
	UnitAmountCents:    999,
	Currency:           string(stripe.CurrencyEUR),
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	price         PriceConfig
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey authenticates Stripe API calls; the webhookSecret
// verifies incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, price PriceConfig) Service {
	stripe.Key = secretKey

	if price.ProductName == "" {
		price = DefaultPremiumPrice
	}

	return &stripeService{
		webhookSecret: webhookSecret,
		price:         price,
	}
}

func (s *stripeService) CreateCheckoutSession(userID, email, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.price.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(s.price.ProductName),
						Description: stripe.String(s.price.ProductDescription),
					},
					UnitAmount: stripe.Int64(s.price.UnitAmountCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.AddMetadata(MetadataUserIDKey, userID)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	// Webhook payloads follow the API version configured on the Stripe
	// account, not the SDK's pinned version.
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}
