package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v79"

	"github.com/yuilabs/minami/internal/billing"
	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/metrics"
)

// PaymentResult describes what a webhook event did.
type PaymentResult string

const (
	PaymentCredited  PaymentResult = "credited"
	PaymentDuplicate PaymentResult = "duplicate"
	PaymentIgnored   PaymentResult = "ignored"
	PaymentError     PaymentResult = "error"
)

// PaymentService turns verified payment events into quota credits.
type PaymentService interface {
	// HandleEvent applies a verified event. A returned error means the event
	// could not be stored and should be redelivered.
	HandleEvent(ctx context.Context, event stripe.Event) (PaymentResult, error)
}

type paymentService struct {
	ledger  PaymentLedger
	pricing domain.TicketPricing
	policy  domain.QuotaPolicy
	logger  *slog.Logger
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(ledger PaymentLedger, pricing domain.TicketPricing, policy domain.QuotaPolicy, logger *slog.Logger) PaymentService {
	return &paymentService{
		ledger:  ledger,
		pricing: pricing,
		policy:  policy,
		logger:  logger,
	}
}

func (s *paymentService) HandleEvent(ctx context.Context, event stripe.Event) (PaymentResult, error) {
	logger := s.logger.With("event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		logger.Debug("ignoring stripe event")
		return s.count(PaymentIgnored), nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		logger.Error("failed to parse checkout session", "error", err)
		return s.count(PaymentIgnored), nil
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		logger.Info("checkout session not paid yet", "payment_status", session.PaymentStatus)
		return s.count(PaymentIgnored), nil
	}

	userID := session.Metadata[billing.MetadataUserID]
	if userID == "" {
		userID = session.ClientReferenceID
	}
	if userID == "" {
		logger.Error("paid checkout session has no user id", "session_id", session.ID)
		return s.count(PaymentIgnored), nil
	}

	if !strings.EqualFold(string(session.Currency), s.pricing.Currency) {
		logger.Error("paid checkout session in unexpected currency",
			"session_id", session.ID,
			"currency", session.Currency,
		)
		return s.count(PaymentIgnored), nil
	}

	quantity, ok := s.pricing.Quantity(session.AmountTotal)
	if !ok {
		logger.Error("paid amount is not a whole number of tickets",
			"session_id", session.ID,
			"amount_total", session.AmountTotal,
			"unit_amount", s.pricing.UnitAmount,
		)
		return s.count(PaymentIgnored), nil
	}

	meta, _ := json.Marshal(map[string]string{
		"session_id": session.ID,
		"mode":       string(session.Mode),
	})

	chars := quantity * s.policy.CharsPerBlock
	result, err := s.ledger.CreditOnce(ctx, domain.CreditParams{
		EventID:     event.ID,
		UserID:      userID,
		Quantity:    quantity,
		Chars:       chars,
		AmountTotal: session.AmountTotal,
		Currency:    string(session.Currency),
		Metadata:    meta,
	})
	if err != nil {
		logger.Error("failed to credit payment", "user_id", userID, "error", err)
		return s.count(PaymentError), err
	}

	if !result.Applied {
		logger.Info("duplicate payment event, already credited", "user_id", userID)
		return s.count(PaymentDuplicate), nil
	}

	logger.Info("payment credited",
		"user_id", userID,
		"quantity", quantity,
		"chars", chars,
		"char_limit", result.Usage.CharLimit,
	)
	return s.count(PaymentCredited), nil
}

func (s *paymentService) count(r PaymentResult) PaymentResult {
	metrics.PaymentsCredited.WithLabelValues(string(r)).Inc()
	return r
}
