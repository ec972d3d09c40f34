package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/yuilabs/minami/internal/service"
)

// maxStripeBodyBytes matches the limit Stripe recommends for webhook bodies.
const maxStripeBodyBytes = 65536

// defaultDBTimeout bounds handler database work when no timeout is configured.
const defaultDBTimeout = 5 * time.Second

// SignatureVerifier checks a Stripe-Signature header and decodes the event.
type SignatureVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// StripeWebhookHandler receives Stripe payment webhooks.
type StripeWebhookHandler struct {
	verifier  SignatureVerifier
	payments  service.PaymentService
	dbTimeout time.Duration
	logger    *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler. A nil
// verifier means billing is not configured and every delivery gets 503.
// dbTimeout bounds the crediting transaction.
func NewStripeWebhookHandler(verifier SignatureVerifier, payments service.PaymentService, dbTimeout time.Duration, logger *slog.Logger) *StripeWebhookHandler {
	if dbTimeout <= 0 {
		dbTimeout = defaultDBTimeout
	}
	return &StripeWebhookHandler{
		verifier:  verifier,
		payments:  payments,
		dbTimeout: dbTimeout,
		logger:    logger.With("handler", "stripe_webhook"),
	}
}

// RegisterRoutes registers the Stripe webhook route.
func (h *StripeWebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/stripe", h.HandleWebhook)
}

// HandleWebhook answers 400 on a bad signature, 500 when crediting failed so
// Stripe redelivers, and 200 otherwise.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		http.Error(w, "Billing not configured", http.StatusServiceUnavailable)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStripeBodyBytes))
	if err != nil {
		h.logger.Warn("failed to read stripe webhook body", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	event, err := h.verifier.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("stripe webhook signature verification failed", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.dbTimeout)
	defer cancel()

	result, err := h.payments.HandleEvent(ctx, event)
	if err != nil {
		h.logger.Error("stripe webhook processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.logger.Debug("stripe webhook handled", "event_id", event.ID, "event_type", event.Type, "result", result)
	w.WriteHeader(http.StatusOK)
}
