package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuilabs/minami/internal/billing"
	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/metrics"
)

const (
	// shortCodeBytes random bytes render as an 8 character base64url code.
	shortCodeBytes = 6

	// maxCodeAttempts bounds retries on short code collisions.
	maxCodeAttempts = 5
)

// CheckoutProvider creates hosted payment sessions.
type CheckoutProvider interface {
	CreateTicketCheckout(ctx context.Context, userID string) (billing.CheckoutSession, error)
}

// LinkIssuer wraps checkout sessions behind short redirect URLs.
type LinkIssuer interface {
	// Issue creates a checkout session for userID and returns its short URL.
	Issue(ctx context.Context, userID string) (string, error)

	// Resolve looks up the checkout URL behind a short code.
	Resolve(ctx context.Context, code string) (domain.CheckoutLink, error)
}

type linkIssuer struct {
	checkout CheckoutProvider
	links    LinkStore
	baseURL  string
	newCode  func() (string, error)
	logger   *slog.Logger
}

// NewLinkIssuer creates a LinkIssuer. checkout may be nil when payments are
// not configured; Issue then fails with ENOTIMPL.
func NewLinkIssuer(checkout CheckoutProvider, links LinkStore, baseURL string, logger *slog.Logger) LinkIssuer {
	return &linkIssuer{
		checkout: checkout,
		links:    links,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		newCode:  NewShortCode,
		logger:   logger,
	}
}

// NewShortCode returns a random URL-safe code.
func NewShortCode() (string, error) {
	b := make([]byte, shortCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (i *linkIssuer) Issue(ctx context.Context, userID string) (string, error) {
	const op = "checkout.issue"

	if i.checkout == nil {
		metrics.CheckoutLinksIssued.WithLabelValues("disabled").Inc()
		return "", domain.Errorf(domain.ENOTIMPL, op, "payments are not configured")
	}

	session, err := i.checkout.CreateTicketCheckout(ctx, userID)
	if err != nil {
		metrics.CheckoutLinksIssued.WithLabelValues("session_error").Inc()
		return "", domain.Unavailable(err, op, "failed to create checkout session")
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := i.newCode()
		if err != nil {
			return "", domain.Internal(err, op, "failed to generate short code")
		}

		_, err = i.links.CreateCheckoutLink(ctx, domain.CheckoutLink{
			ShortCode:   code,
			CheckoutURL: session.URL,
			UserID:      userID,
			SessionID:   session.ID,
		})
		if err == nil {
			metrics.CheckoutLinksIssued.WithLabelValues("success").Inc()
			i.logger.Info("checkout link issued", "user_id", userID, "code", code, "session_id", session.ID)
			return i.baseURL + "/s/" + code, nil
		}
		if !domain.IsConflict(err) {
			metrics.CheckoutLinksIssued.WithLabelValues("store_error").Inc()
			i.logger.Error("failed to persist checkout link, session orphaned",
				"user_id", userID,
				"session_id", session.ID,
				"error", err,
			)
			return "", domain.Unavailable(err, op, "failed to persist checkout link")
		}
		i.logger.Warn("short code collision", "attempt", attempt)
	}

	metrics.CheckoutLinksIssued.WithLabelValues("store_error").Inc()
	i.logger.Error("short code space exhausted, session orphaned", "user_id", userID, "session_id", session.ID)
	return "", domain.Internal(nil, op, "could not allocate a unique short code")
}

func (i *linkIssuer) Resolve(ctx context.Context, code string) (domain.CheckoutLink, error) {
	if code == "" || len(code) > 32 {
		return domain.CheckoutLink{}, domain.NotFound("checkout.resolve", "checkout link", code)
	}
	return i.links.GetCheckoutLink(ctx, code)
}
