// Package service contains the business logic layer.
//
// The store interfaces below are satisfied by both the Postgres store and
// the in-memory store used in tests.
package service

import (
	"context"

	"github.com/yuilabs/minami/internal/domain"
)

// UsageStore persists per-user character counters.
type UsageStore interface {
	GetUsage(ctx context.Context, userID string) (domain.UsageRecord, error)
	AddChars(ctx context.Context, userID string, n int64) (domain.UsageRecord, error)
	ClaimNotice(ctx context.Context, userID string) (bool, error)
	ReleaseNotice(ctx context.Context, userID string) error
}

// PaymentLedger applies confirmed payments exactly once per event id.
type PaymentLedger interface {
	CreditOnce(ctx context.Context, p domain.CreditParams) (domain.CreditResult, error)
}

// LinkStore persists short checkout links.
type LinkStore interface {
	CreateCheckoutLink(ctx context.Context, link domain.CheckoutLink) (domain.CheckoutLink, error)
	GetCheckoutLink(ctx context.Context, code string) (domain.CheckoutLink, error)
}

// ProfileStore holds onboarding state.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	SaveName(ctx context.Context, userID, name string) (*domain.Profile, error)
}

// HistoryStore holds conversation turns.
type HistoryStore interface {
	SaveMessage(ctx context.Context, msg domain.ChatMessage) error
	RecentMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
}

// TargetStore tracks users who receive scheduled broadcasts.
type TargetStore interface {
	MarkActive(ctx context.Context, userID string) error
	ListActiveTargets(ctx context.Context) ([]string, error)
	DeactivateTargets(ctx context.Context, userIDs []string) (int64, error)
}
