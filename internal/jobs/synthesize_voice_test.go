package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuilabs/minami/internal/domain"
	"github.com/yuilabs/minami/internal/line"
	"github.com/yuilabs/minami/internal/storage"
	"github.com/yuilabs/minami/internal/voice"
	"github.com/yuilabs/minami/internal/worker"
)

type fakeSynth struct {
	audio  []byte
	err    error
	script string
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.script = text
	return f.audio, f.err
}

type fakePusher struct {
	mu   sync.Mutex
	err  error
	sent map[string][]domain.OutgoingMessage
}

func (f *fakePusher) Push(_ context.Context, userID string, msgs []domain.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[string][]domain.OutgoingMessage)
	}
	f.sent[userID] = append(f.sent[userID], msgs...)
	return nil
}

func setup(t *testing.T, synth *fakeSynth, pusher *fakePusher) (*SynthesizeVoiceHandler, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: dir,
		BaseURL:  "https://bot.example.com/files",
	}, logger)
	require.NoError(t, err)
	return NewSynthesizeVoiceHandler(synth, store, pusher, logger), dir
}

func voiceFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir, "voice"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSynthesizeVoiceHandler_Delivers(t *testing.T) {
	synth := &fakeSynth{audio: []byte("ID3-mp3")}
	pusher := &fakePusher{}
	h, dir := setup(t, synth, pusher)

	err := h.Handle(context.Background(), []byte(`{"user_id":"U1","text":"  おはよ、今日もがんばろうね  "}`))
	require.NoError(t, err)

	assert.Equal(t, "おはよ、今日もがんばろうね", synth.script)

	msgs := pusher.sent["U1"]
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.OutgoingAudio, msgs[0].Kind)
	assert.True(t, strings.HasPrefix(msgs[0].AudioURL, "https://bot.example.com/files/voice/"))
	assert.True(t, strings.HasSuffix(msgs[0].AudioURL, ".mp3"))
	assert.Equal(t, voice.EstimateDuration("おはよ、今日もがんばろうね"), msgs[0].Duration)

	assert.Len(t, voiceFiles(t, dir), 1)
}

func TestSynthesizeVoiceHandler_InvalidPayload(t *testing.T) {
	h, _ := setup(t, &fakeSynth{}, &fakePusher{})

	for _, payload := range []string{`not json`, `{"text":"hi"}`, `{"user_id":"U1","text":"   "}`} {
		err := h.Handle(context.Background(), []byte(payload))
		assert.True(t, worker.IsPermanent(err), payload)
	}
}

func TestSynthesizeVoiceHandler_SynthesisErrors(t *testing.T) {
	t.Run("transient errors are retried", func(t *testing.T) {
		h, _ := setup(t, &fakeSynth{err: fmt.Errorf("status 503: %w", voice.ErrUnavailable)}, &fakePusher{})
		err := h.Handle(context.Background(), []byte(`{"user_id":"U1","text":"hi"}`))
		require.Error(t, err)
		assert.False(t, worker.IsPermanent(err))
	})

	t.Run("auth errors are permanent", func(t *testing.T) {
		h, _ := setup(t, &fakeSynth{err: voice.ErrUnauthorized}, &fakePusher{})
		err := h.Handle(context.Background(), []byte(`{"user_id":"U1","text":"hi"}`))
		assert.True(t, worker.IsPermanent(err))
	})
}

func TestSynthesizeVoiceHandler_PushFailureRemovesAudio(t *testing.T) {
	t.Run("unreachable user", func(t *testing.T) {
		h, dir := setup(t, &fakeSynth{audio: []byte("mp3")}, &fakePusher{err: fmt.Errorf("line push: %w", line.ErrUnreachable)})
		err := h.Handle(context.Background(), []byte(`{"user_id":"U1","text":"hi"}`))
		assert.True(t, worker.IsPermanent(err))
		assert.Empty(t, voiceFiles(t, dir))
	})

	t.Run("transient push failure", func(t *testing.T) {
		h, dir := setup(t, &fakeSynth{audio: []byte("mp3")}, &fakePusher{err: errors.New("connection reset")})
		err := h.Handle(context.Background(), []byte(`{"user_id":"U1","text":"hi"}`))
		require.Error(t, err)
		assert.False(t, worker.IsPermanent(err))
		assert.Empty(t, voiceFiles(t, dir))
	})
}
