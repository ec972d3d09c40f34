package service

import (
	"context"
	"log/slog"

	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/metrics"
)

// QuotaGate decides whether a message may be answered before any reply
// generation cost is incurred.
type QuotaGate interface {
	// Evaluate classifies the user's usage. On a store failure it returns an
	// Unavailable decision carrying the apology together with the error.
	Evaluate(ctx context.Context, userID string, incomingLen int64) (domain.Decision, error)

	// RecordUsage charges an answered exchange to the user.
	RecordUsage(ctx context.Context, userID string, inputLen, replyLen int64) (domain.UsageRecord, error)

	// ReleaseNotice gives back a won notice claim whose message never
	// reached the user.
	ReleaseNotice(ctx context.Context, userID string) error
}

type quotaGate struct {
	usage  UsageStore
	links  LinkIssuer
	policy domain.QuotaPolicy
	logger *slog.Logger
}

// NewQuotaGate creates a QuotaGate.
func NewQuotaGate(usage UsageStore, links LinkIssuer, policy domain.QuotaPolicy, logger *slog.Logger) QuotaGate {
	return &quotaGate{
		usage:  usage,
		links:  links,
		policy: policy,
		logger: logger,
	}
}

func (g *quotaGate) Evaluate(ctx context.Context, userID string, incomingLen int64) (domain.Decision, error) {
	const op = "quota.evaluate"

	usage, err := g.usage.GetUsage(ctx, userID)
	if err != nil {
		return g.unavailable(domain.UsageRecord{UserID: userID}, domain.Unavailable(err, op, "failed to read usage"))
	}

	d := domain.Decision{
		Kind:      g.policy.Classify(usage),
		Usage:     usage,
		Remaining: usage.Remaining(incomingLen),
	}

	switch d.Kind {
	case domain.DecisionWarnNearLimit:
		d.Notice = WarnMessage(d.Remaining)

	case domain.DecisionExhaustedFirstNotice:
		won, err := g.usage.ClaimNotice(ctx, userID)
		if err != nil {
			return g.unavailable(usage, domain.Unavailable(err, op, "failed to claim notice"))
		}
		if !won {
			d.Kind = domain.DecisionExhaustedSilent
			break
		}

		shortURL, err := g.links.Issue(ctx, userID)
		if err != nil {
			// Give the next message another chance at the notice.
			if relErr := g.ReleaseNotice(context.WithoutCancel(ctx), userID); relErr != nil {
				g.logger.Error("failed to release notice claim", "user_id", userID, "error", relErr)
			}
			return g.unavailable(usage, err)
		}
		d.ShortURL = shortURL
		d.Notice = ExhaustedMessage(shortURL)

		g.logger.Info("quota exhausted, checkout link sent",
			"user_id", userID,
			"total_chars", usage.TotalChars,
			"char_limit", usage.CharLimit,
		)
	}

	metrics.QuotaDecisions.WithLabelValues(string(d.Kind)).Inc()
	return d, nil
}

func (g *quotaGate) unavailable(usage domain.UsageRecord, err error) (domain.Decision, error) {
	metrics.QuotaDecisions.WithLabelValues(string(domain.DecisionUnavailable)).Inc()
	return domain.Decision{
		Kind:   domain.DecisionUnavailable,
		Usage:  usage,
		Notice: MessageUnavailable,
	}, err
}

func (g *quotaGate) RecordUsage(ctx context.Context, userID string, inputLen, replyLen int64) (domain.UsageRecord, error) {
	n := inputLen + replyLen
	usage, err := g.usage.AddChars(ctx, userID, n)
	if err != nil {
		return domain.UsageRecord{}, domain.Unavailable(err, "quota.record_usage", "failed to record usage")
	}
	metrics.CharsConsumed.Add(float64(n))
	return usage, nil
}

func (g *quotaGate) ReleaseNotice(ctx context.Context, userID string) error {
	if err := g.usage.ReleaseNotice(ctx, userID); err != nil {
		return domain.Unavailable(err, "quota.release_notice", "failed to release notice claim")
	}
	metrics.NoticesReleased.Inc()
	return nil
}
