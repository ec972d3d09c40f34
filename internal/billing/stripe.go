// Package billing provides the Stripe integration for chat ticket purchases.
package billing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/yuilabs/minami/internal/domain"
)

// MetadataUserID is the session metadata key carrying the chat user id.
const MetadataUserID = "user_id"

// Service defines the interface for billing operations.
type Service interface {
	// CreateTicketCheckout creates a one-time payment session for quota
	// blocks, tagged with userID. Returns the session id and hosted URL.
	CreateTicketCheckout(ctx context.Context, userID string) (CheckoutSession, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// CheckoutSession is the part of a created session the caller needs.
type CheckoutSession struct {
	ID  string
	URL string
}

// Config holds what the Stripe service needs besides credentials.
type Config struct {
	Ticket     domain.TicketPricing
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	config        Config
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, config Config) Service {
	stripe.Key = secretKey

	if config.Timeout > 0 {
		stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient: &http.Client{Timeout: config.Timeout},
		}))
	}

	return &stripeService{
		webhookSecret: webhookSecret,
		config:        config,
	}
}

func (s *stripeService) CreateTicketCheckout(ctx context.Context, userID string) (CheckoutSession, error) {
	params := checkoutParams(s.config, userID)
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// checkoutParams builds the session request: one adjustable line item at the
// configured unit price, metadata carrying the user id.
func checkoutParams(cfg Config, userID string) *stripe.CheckoutSessionParams {
	t := cfg.Ticket
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(t.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(t.ProductName),
					},
					UnitAmount: stripe.Int64(t.UnitAmount),
				},
				Quantity: stripe.Int64(1),
				AdjustableQuantity: &stripe.CheckoutSessionLineItemAdjustableQuantityParams{
					Enabled: stripe.Bool(true),
					Minimum: stripe.Int64(1),
					Maximum: stripe.Int64(t.MaxQuantity),
				},
			},
		},
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(cfg.SuccessURL),
		CancelURL:         stripe.String(cfg.CancelURL),
	}
	params.AddMetadata(MetadataUserID, userID)
	return params
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	return VerifySignature(payload, signature, s.webhookSecret)
}

// VerifySignature checks the Stripe-Signature header against secret. The
// account API version may differ from the library's, so the version check is
// skipped.
func VerifySignature(payload []byte, signature, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}
