// Package store persists usage, payments, checkout links and conversation
// state in PostgreSQL through the generated repository queries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sqlc-dev/pqtype"

	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/repository"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements the service store interfaces on top of PostgreSQL.
type Store struct {
	db      *sql.DB
	queries *repository.Queries
	policy  domain.QuotaPolicy
}

// New creates a Store. policy supplies the ceiling for users without a row.
func New(db *sql.DB, policy domain.QuotaPolicy) *Store {
	return &Store{
		db:      db,
		queries: repository.New(db),
		policy:  policy,
	}
}

// Queries exposes the underlying query set for the job queue.
func (s *Store) Queries() *repository.Queries {
	return s.queries
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// Usage
// =============================================================================

// GetUsage returns the usage record for userID. A user without a row gets the
// zero record at the free limit; nothing is written.
func (s *Store) GetUsage(ctx context.Context, userID string) (domain.UsageRecord, error) {
	const op = "store.get_usage"

	row, err := s.queries.GetChatUsage(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.policy.NewUsageRecord(userID), nil
	}
	if err != nil {
		return domain.UsageRecord{}, domain.Unavailable(err, op, "failed to read usage")
	}
	return usageFromRow(row), nil
}

// AddChars atomically adds n characters to the user's total, creating the
// row at the free limit when absent.
func (s *Store) AddChars(ctx context.Context, userID string, n int64) (domain.UsageRecord, error) {
	const op = "store.add_chars"

	if n < 0 {
		return domain.UsageRecord{}, domain.Invalid(op, "character count must not be negative")
	}

	row, err := s.queries.AddChatUsage(ctx, repository.AddChatUsageParams{
		UserID:        userID,
		Chars:         n,
		FreeCharLimit: s.policy.FreeCharLimit,
	})
	if err != nil {
		return domain.UsageRecord{}, domain.Unavailable(err, op, "failed to record usage")
	}
	return usageFromRow(row), nil
}

// ClaimNotice flips notice_sent from false to true for an exhausted user.
// Exactly one concurrent caller observes true.
func (s *Store) ClaimNotice(ctx context.Context, userID string) (bool, error) {
	const op = "store.claim_notice"

	n, err := s.queries.ClaimUsageNotice(ctx, userID)
	if err != nil {
		return false, domain.Unavailable(err, op, "failed to claim notice")
	}
	return n == 1, nil
}

// ReleaseNotice undoes a claim whose notice could not be delivered.
func (s *Store) ReleaseNotice(ctx context.Context, userID string) error {
	const op = "store.release_notice"

	if err := s.queries.ReleaseUsageNotice(ctx, userID); err != nil {
		return domain.Unavailable(err, op, "failed to release notice")
	}
	return nil
}

// CreditOnce records the payment event and raises the ceiling in one
// transaction. A repeated event id leaves the ceiling untouched.
func (s *Store) CreditOnce(ctx context.Context, p domain.CreditParams) (domain.CreditResult, error) {
	const op = "store.credit_once"

	if p.Chars <= 0 || p.Quantity <= 0 {
		return domain.CreditResult{}, domain.Invalid(op, "credit must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CreditResult{}, domain.Unavailable(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	inserted, err := qtx.InsertPaymentEvent(ctx, repository.InsertPaymentEventParams{
		EventID:       p.EventID,
		UserID:        p.UserID,
		Quantity:      p.Quantity,
		CharsCredited: p.Chars,
		AmountTotal:   p.AmountTotal,
		Currency:      p.Currency,
		Metadata:      pqtype.NullRawMessage{RawMessage: p.Metadata, Valid: len(p.Metadata) > 0},
	})
	if err != nil {
		return domain.CreditResult{}, domain.Unavailable(err, op, "failed to record payment event")
	}

	if inserted == 0 {
		usage, err := qtx.GetChatUsage(ctx, p.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CreditResult{Usage: s.policy.NewUsageRecord(p.UserID)}, nil
		}
		if err != nil {
			return domain.CreditResult{}, domain.Unavailable(err, op, "failed to read usage")
		}
		return domain.CreditResult{Usage: usageFromRow(usage)}, nil
	}

	row, err := qtx.CreditChatUsage(ctx, repository.CreditChatUsageParams{
		UserID:        p.UserID,
		FreeCharLimit: s.policy.FreeCharLimit,
		Chars:         p.Chars,
	})
	if err != nil {
		return domain.CreditResult{}, domain.Unavailable(err, op, "failed to raise limit")
	}

	if err := tx.Commit(); err != nil {
		return domain.CreditResult{}, domain.Unavailable(err, op, "failed to commit credit")
	}

	return domain.CreditResult{Usage: usageFromRow(row), Applied: true}, nil
}

// =============================================================================
// Checkout links
// =============================================================================

// CreateCheckoutLink stores a link. An existing short code yields ECONFLICT.
func (s *Store) CreateCheckoutLink(ctx context.Context, link domain.CheckoutLink) (domain.CheckoutLink, error) {
	const op = "store.create_checkout_link"

	row, err := s.queries.CreateCheckoutLink(ctx, repository.CreateCheckoutLinkParams{
		ShortCode:   link.ShortCode,
		CheckoutUrl: link.CheckoutURL,
		UserID:      link.UserID,
		SessionID:   link.SessionID,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.CheckoutLink{}, domain.Conflict(op, fmt.Sprintf("short code %q already exists", link.ShortCode))
		}
		return domain.CheckoutLink{}, domain.Unavailable(err, op, "failed to store checkout link")
	}
	return linkFromRow(row), nil
}

// GetCheckoutLink resolves a short code.
func (s *Store) GetCheckoutLink(ctx context.Context, code string) (domain.CheckoutLink, error) {
	const op = "store.get_checkout_link"

	row, err := s.queries.GetCheckoutLink(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CheckoutLink{}, domain.NotFound(op, "checkout link", code)
	}
	if err != nil {
		return domain.CheckoutLink{}, domain.Unavailable(err, op, "failed to read checkout link")
	}
	return linkFromRow(row), nil
}

// =============================================================================
// Conversation
// =============================================================================

// GetProfile returns the profile for userID or ENOTFOUND.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	const op = "store.get_profile"

	row, err := s.queries.GetUserProfile(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "profile", userID)
	}
	if err != nil {
		return nil, domain.Unavailable(err, op, "failed to read profile")
	}
	return &domain.Profile{
		UserID:      row.UserID,
		DisplayName: row.DisplayName,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// SaveName stores how the persona should address the user.
func (s *Store) SaveName(ctx context.Context, userID, name string) (*domain.Profile, error) {
	const op = "store.save_name"

	row, err := s.queries.UpsertUserProfileName(ctx, repository.UpsertUserProfileNameParams{
		UserID:      userID,
		DisplayName: name,
	})
	if err != nil {
		return nil, domain.Unavailable(err, op, "failed to save name")
	}
	return &domain.Profile{
		UserID:      row.UserID,
		DisplayName: row.DisplayName,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// SaveMessage appends one conversation turn.
func (s *Store) SaveMessage(ctx context.Context, msg domain.ChatMessage) error {
	const op = "store.save_message"

	err := s.queries.CreateChatMessage(ctx, repository.CreateChatMessageParams{
		UserID:  msg.UserID,
		Role:    string(msg.Role),
		Content: msg.Content,
	})
	if err != nil {
		return domain.Unavailable(err, op, "failed to save message")
	}
	return nil
}

// RecentMessages returns up to limit turns, oldest first.
func (s *Store) RecentMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	const op = "store.recent_messages"

	rows, err := s.queries.ListRecentChatMessages(ctx, repository.ListRecentChatMessagesParams{
		UserID: userID,
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, domain.Unavailable(err, op, "failed to load history")
	}

	msgs := make([]domain.ChatMessage, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = domain.ChatMessage{
			UserID:    row.UserID,
			Role:      domain.Role(row.Role),
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		}
	}
	return msgs, nil
}

// MarkActive records the user as reachable for broadcasts.
func (s *Store) MarkActive(ctx context.Context, userID string) error {
	const op = "store.mark_active"

	if err := s.queries.TouchMessageTarget(ctx, userID); err != nil {
		return domain.Unavailable(err, op, "failed to mark target active")
	}
	return nil
}

// ListActiveTargets returns every user a broadcast should reach.
func (s *Store) ListActiveTargets(ctx context.Context) ([]string, error) {
	const op = "store.list_active_targets"

	ids, err := s.queries.ListActiveMessageTargets(ctx)
	if err != nil {
		return nil, domain.Unavailable(err, op, "failed to list targets")
	}
	return ids, nil
}

// DeactivateTargets stops broadcasting to userIDs.
func (s *Store) DeactivateTargets(ctx context.Context, userIDs []string) (int64, error) {
	const op = "store.deactivate_targets"

	if len(userIDs) == 0 {
		return 0, nil
	}
	n, err := s.queries.DeactivateMessageTargets(ctx, userIDs)
	if err != nil {
		return 0, domain.Unavailable(err, op, "failed to deactivate targets")
	}
	return n, nil
}

func usageFromRow(row repository.ChatUsage) domain.UsageRecord {
	return domain.UsageRecord{
		UserID:     row.UserID,
		TotalChars: row.TotalChars,
		CharLimit:  row.CharLimit,
		NoticeSent: row.NoticeSent,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func linkFromRow(row repository.CheckoutLink) domain.CheckoutLink {
	return domain.CheckoutLink{
		ShortCode:   row.ShortCode,
		CheckoutURL: row.CheckoutUrl,
		UserID:      row.UserID,
		SessionID:   row.SessionID,
		CreatedAt:   row.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
