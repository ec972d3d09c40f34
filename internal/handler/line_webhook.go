package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/line"
	"github.com/yuilabs/minami/internal/service"
)

// maxLineBodyBytes caps a webhook batch. LINE sends well under this.
const maxLineBodyBytes = 1 << 20

// Replier sends reply messages for a LINE reply token.
type Replier interface {
	Reply(ctx context.Context, replyToken string, msgs []domain.OutgoingMessage) error
}

// LineWebhookConfig configures a LineWebhookHandler.
type LineWebhookConfig struct {
	ChannelSecret string

	// EventTimeout bounds the chat flow and reply for one event.
	EventTimeout time.Duration

	// MaxConcurrent limits events processed at once within one batch.
	MaxConcurrent int
}

// LineWebhookHandler receives LINE Messaging API callbacks.
type LineWebhookHandler struct {
	config  LineWebhookConfig
	chat    service.ChatService
	replier Replier
	logger  *slog.Logger
}

// NewLineWebhookHandler creates a new LINE webhook handler.
func NewLineWebhookHandler(config LineWebhookConfig, chat service.ChatService, replier Replier, logger *slog.Logger) *LineWebhookHandler {
	if config.EventTimeout <= 0 {
		config.EventTimeout = 50 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 8
	}
	return &LineWebhookHandler{
		config:  config,
		chat:    chat,
		replier: replier,
		logger:  logger.With("handler", "line_webhook"),
	}
}

// RegisterRoutes registers the LINE webhook route.
func (h *LineWebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/line", h.HandleWebhook)
}

// HandleWebhook verifies the signature, then runs every event of the batch
// concurrently. Any event error makes the whole request answer 500.
func (h *LineWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLineBodyBytes)

	events, err := line.ParseRequest(h.config.ChannelSecret, r)
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			h.logger.Warn("line webhook signature verification failed", "ip", r.RemoteAddr)
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}
		h.logger.Warn("failed to parse line webhook", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if events.Skipped > 0 {
		h.logger.Debug("skipped unsupported line events", "count", events.Skipped)
	}

	var g errgroup.Group
	g.SetLimit(h.config.MaxConcurrent)

	for _, ev := range events.Texts {
		g.Go(func() error {
			return h.handleText(r.Context(), ev)
		})
	}
	if len(events.Unfollowed) > 0 {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), h.config.EventTimeout)
			defer cancel()
			return h.chat.HandleUnfollow(ctx, events.Unfollowed)
		})
	}

	if err := g.Wait(); err != nil {
		h.logger.Error("line webhook event failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *LineWebhookHandler) handleText(ctx context.Context, ev line.TextEvent) error {
	ctx, cancel := context.WithTimeout(ctx, h.config.EventTimeout)
	defer cancel()

	msgs, err := h.chat.HandleText(ctx, ev)
	if err != nil {
		return fmt.Errorf("chat event %s: %w", ev.EventID, err)
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := h.replier.Reply(ctx, ev.ReplyToken, msgs); err != nil {
		if carriesNotice(msgs) {
			if relErr := h.chat.ReleaseNotice(context.WithoutCancel(ctx), ev.UserID); relErr != nil {
				h.logger.Error("failed to release undelivered quota notice", "user_id", ev.UserID, "error", relErr)
			} else {
				h.logger.Warn("quota notice undelivered, claim released", "user_id", ev.UserID)
			}
		}
		return fmt.Errorf("reply to event %s: %w", ev.EventID, err)
	}
	return nil
}

func carriesNotice(msgs []domain.OutgoingMessage) bool {
	for _, m := range msgs {
		if m.QuotaNotice {
			return true
		}
	}
	return false
}
