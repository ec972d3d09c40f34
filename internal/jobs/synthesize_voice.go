// Package jobs contains the background job handlers run by the worker.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/line"
	"github.com/yuilabs/minami/internal/metrics"
	"github.com/yuilabs/minami/internal/storage"
	"github.com/yuilabs/minami/internal/voice"
	"github.com/yuilabs/minami/internal/worker"
)

// Pusher delivers messages outside a reply.
type Pusher interface {
	Push(ctx context.Context, userID string, msgs []domain.OutgoingMessage) error
}

// SynthesizeVoiceHandler voices an assistant reply, stores the clip and
// pushes it to the user as an audio message.
type SynthesizeVoiceHandler struct {
	synth   voice.Synthesizer
	storage storage.Storage
	pusher  Pusher
	logger  *slog.Logger
}

// NewSynthesizeVoiceHandler creates the handler for synthesize_voice jobs.
func NewSynthesizeVoiceHandler(
	synth voice.Synthesizer,
	store storage.Storage,
	pusher Pusher,
	logger *slog.Logger,
) *SynthesizeVoiceHandler {
	return &SynthesizeVoiceHandler{
		synth:   synth,
		storage: store,
		pusher:  pusher,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *SynthesizeVoiceHandler) Type() string {
	return worker.JobTypeSynthesizeVoice
}

// Handle runs one synthesize_voice job.
func (h *SynthesizeVoiceHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SynthesizeVoicePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.UserID == "" {
		return worker.NewPermanentError(errors.New("payload has no user_id"))
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return worker.NewPermanentError(voice.ErrEmptyScript)
	}
	if r := []rune(text); len(r) > voice.MaxScriptLength {
		text = string(r[:voice.MaxScriptLength])
	}

	logger := h.logger.With("user_id", p.UserID)

	audio, err := h.synth.Synthesize(ctx, text)
	if err != nil {
		metrics.VoiceGenerated.WithLabelValues("error").Inc()
		if voice.IsRetryable(err) {
			return fmt.Errorf("synthesize: %w", err)
		}
		return worker.NewPermanentError(fmt.Errorf("synthesize: %w", err))
	}
	metrics.VoiceGenerated.WithLabelValues("success").Inc()

	key := storage.VoiceKey()
	err = h.storage.Put(ctx, key, bytes.NewReader(audio), storage.PutOptions{
		ContentType: "audio/mpeg",
		Public:      true,
	})
	if err != nil {
		return fmt.Errorf("store audio: %w", err)
	}

	url, err := h.storage.URL(ctx, key, 0)
	if err != nil {
		h.discard(ctx, key, logger)
		return fmt.Errorf("audio url: %w", err)
	}

	msg := domain.AudioMessage(url, voice.EstimateDuration(text))
	if err := h.pusher.Push(ctx, p.UserID, []domain.OutgoingMessage{msg}); err != nil {
		h.discard(ctx, key, logger)
		if errors.Is(err, line.ErrUnreachable) {
			return worker.NewPermanentError(fmt.Errorf("push audio: %w", err))
		}
		return fmt.Errorf("push audio: %w", err)
	}

	logger.Info("voice reply delivered", "key", key, "bytes", len(audio))
	return nil
}

// discard removes an uploaded clip that was never delivered.
func (h *SynthesizeVoiceHandler) discard(ctx context.Context, key string, logger *slog.Logger) {
	if err := h.storage.Delete(ctx, key); err != nil {
		logger.Warn("failed to delete undelivered audio", "key", key, "error", err)
	}
}
