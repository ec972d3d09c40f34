package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/yuilabs/minami/internal/ai"
	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/line"
	"github.com/yuilabs/minami/internal/metrics"
)

// Throttler limits how often one user may message the bot.
type Throttler interface {
	Allow(ctx context.Context, userID string) (bool, time.Duration, error)
}

// VoiceQueue schedules voiced copies of replies.
type VoiceQueue interface {
	EnqueueVoice(ctx context.Context, userID, text string) error
}

// ChatService runs the conversation flow for inbound messages.
type ChatService interface {
	// HandleText returns the messages to reply with. An empty slice means
	// no reply is sent.
	HandleText(ctx context.Context, ev line.TextEvent) ([]domain.OutgoingMessage, error)

	// ReleaseNotice is called when a reply carrying the quota notice could
	// not be delivered, so the user's next message gets the notice again.
	ReleaseNotice(ctx context.Context, userID string) error

	// HandleUnfollow stops broadcasts to users who blocked the bot.
	HandleUnfollow(ctx context.Context, userIDs []string) error
}

// ChatDeps wires a ChatService. Throttle and Voice are optional.
type ChatDeps struct {
	Profiles ProfileStore
	History  HistoryStore
	Targets  TargetStore
	Gate     QuotaGate
	AI       ai.Provider
	Throttle Throttler
	Voice    VoiceQueue

	Persona      domain.Persona
	HistoryLimit int
	StoreTimeout time.Duration
	Logger       *slog.Logger
}

type chatService struct {
	ChatDeps
}

// NewChatService creates a ChatService.
func NewChatService(deps ChatDeps) ChatService {
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = 10
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = 5 * time.Second
	}
	return &chatService{ChatDeps: deps}
}

func (s *chatService) HandleText(ctx context.Context, ev line.TextEvent) ([]domain.OutgoingMessage, error) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil, nil
	}
	logger := s.Logger.With("user_id", ev.UserID)

	if s.Throttle != nil {
		ok, retryAfter, err := s.Throttle.Allow(ctx, ev.UserID)
		switch {
		case err != nil:
			logger.Warn("throttle check failed, allowing message", "error", err)
		case !ok:
			metrics.MessagesThrottled.Inc()
			logger.Info("message throttled", "retry_after", retryAfter)
			return nil, nil
		}
	}

	profile, err := s.profile(ctx, ev.UserID)
	if err != nil {
		return s.fallback(logger, "profile", err), nil
	}
	if !profile.HasName() {
		return s.onboard(ctx, ev.UserID, text, logger), nil
	}

	inputLen := domain.CountChars(text)
	decision, err := s.Gate.Evaluate(ctx, ev.UserID, inputLen)
	switch decision.Kind {
	case domain.DecisionUnavailable:
		return s.fallback(logger, "quota", err), nil
	case domain.DecisionExhaustedSilent:
		logger.Debug("quota exhausted, staying silent")
		return nil, nil
	case domain.DecisionExhaustedFirstNotice:
		notice := domain.TextMessage(decision.Notice)
		notice.QuotaNotice = true
		return []domain.OutgoingMessage{notice}, nil
	}

	reply, err := s.generate(ctx, ev.UserID, profile.DisplayName, text, logger)
	if err != nil {
		return s.fallback(logger, "ai", err), nil
	}

	if _, err := s.Gate.RecordUsage(ctx, ev.UserID, inputLen, domain.CountChars(reply)); err != nil {
		metrics.PostProcessFailed("usage")
		logger.Error("failed to record usage", "error", err)
	}

	out := []domain.OutgoingMessage{domain.TextMessage(reply)}
	if decision.Kind == domain.DecisionWarnNearLimit {
		out = append(out, domain.TextMessage(decision.Notice))
	}

	s.postProcess(ctx, ev.UserID, reply, logger)
	return out, nil
}

func (s *chatService) profile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.StoreTimeout)
	defer cancel()

	p, err := s.Profiles.GetProfile(ctx, userID)
	if domain.IsNotFound(err) {
		return nil, nil
	}
	return p, err
}

// onboard captures the name to address the user by. These exchanges are
// not charged against the quota.
func (s *chatService) onboard(ctx context.Context, userID, text string, logger *slog.Logger) []domain.OutgoingMessage {
	name := strings.TrimSpace(norm.NFKC.String(text))
	if n := domain.CountChars(name); n == 0 || n > domain.MaxNameLength {
		return []domain.OutgoingMessage{domain.TextMessage(MessageAskName)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.StoreTimeout)
	defer cancel()

	if _, err := s.Profiles.SaveName(ctx, userID, name); err != nil {
		return s.fallback(logger, "profile", err)
	}
	logger.Info("user onboarded", "name", name)
	return []domain.OutgoingMessage{domain.TextMessage(GreetingMessage(name))}
}

func (s *chatService) generate(ctx context.Context, userID, name, text string, logger *slog.Logger) (string, error) {
	turn := domain.ChatMessage{UserID: userID, Role: domain.RoleUser, Content: text}

	storeCtx, cancel := context.WithTimeout(ctx, s.StoreTimeout)
	saveErr := s.History.SaveMessage(storeCtx, turn)
	cancel()
	if saveErr != nil {
		metrics.PostProcessFailed("history")
		logger.Warn("failed to save user turn, replying anyway", "error", saveErr)
	}

	storeCtx, cancel = context.WithTimeout(ctx, s.StoreTimeout)
	history, err := s.History.RecentMessages(storeCtx, userID, s.HistoryLimit)
	cancel()
	switch {
	case err != nil || len(history) == 0:
		if err != nil {
			logger.Warn("failed to load history, replying without it", "error", err)
		}
		history = []domain.ChatMessage{turn}
	case saveErr != nil:
		// The unsaved turn is missing from the stored history.
		history = append(history, turn)
	}

	result, err := s.AI.GenerateReply(ctx, ai.ReplyParams{
		UserID:       userID,
		SystemPrompt: s.Persona.SystemPrompt(name),
		Messages:     history,
	})
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.AIAPICalls.WithLabelValues("success").Inc()
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(result.Usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(result.Usage.OutputTokens))

	reply := strings.TrimSpace(result.Text)
	if reply == "" {
		return "", ai.EAIEmptyReply
	}

	logger.Debug("reply generated",
		"model", result.Usage.Model,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"duration", result.Usage.Duration,
	)

	storeCtx, cancel = context.WithTimeout(ctx, s.StoreTimeout)
	defer cancel()
	if err := s.History.SaveMessage(storeCtx, domain.ChatMessage{UserID: userID, Role: domain.RoleAssistant, Content: reply}); err != nil {
		metrics.PostProcessFailed("history")
		logger.Error("failed to save assistant turn", "error", err)
	}

	return reply, nil
}

// postProcess runs steps that must never block delivery of the reply.
func (s *chatService) postProcess(ctx context.Context, userID, reply string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.StoreTimeout)
	defer cancel()

	if err := s.Targets.MarkActive(ctx, userID); err != nil {
		metrics.PostProcessFailed("target")
		logger.Warn("failed to mark broadcast target", "error", err)
	}

	if s.Voice != nil {
		if err := s.Voice.EnqueueVoice(ctx, userID, reply); err != nil {
			metrics.PostProcessFailed("voice")
			logger.Warn("failed to enqueue voice reply", "error", err)
		}
	}
}

// fallback logs a canned reply so it can be told apart from a real one.
func (s *chatService) fallback(logger *slog.Logger, reason string, err error) []domain.OutgoingMessage {
	metrics.Fallback(reason)
	logger.Warn("sending fallback reply", "reason", reason, "error", err)
	return []domain.OutgoingMessage{domain.TextMessage(MessageUnavailable)}
}

func (s *chatService) ReleaseNotice(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.StoreTimeout)
	defer cancel()
	return s.Gate.ReleaseNotice(ctx, userID)
}

func (s *chatService) HandleUnfollow(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.StoreTimeout)
	defer cancel()

	n, err := s.Targets.DeactivateTargets(ctx, userIDs)
	if err != nil {
		return err
	}
	s.Logger.Info("deactivated broadcast targets", "count", n)
	return nil
}
