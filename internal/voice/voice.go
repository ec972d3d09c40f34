// Package voice synthesizes spoken replies with the NijiVoice TTS API.
package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuilabs/minami/internal/domain"
)

const (
	// DefaultBaseURL is the NijiVoice API root
	DefaultBaseURL = "https://api.nijivoice.com"

	// MaxScriptLength is the longest script the API accepts in one request.
	MaxScriptLength = 3000

	// maxAudioSize bounds a downloaded or inline audio payload (10MB)
	maxAudioSize = 10 * 1024 * 1024
)

// Errors returned by the synthesizer
var (
	ErrUnavailable  = errors.New("voice service temporarily unavailable")
	ErrUnauthorized = errors.New("voice service authentication failed")
	ErrRateLimit    = errors.New("voice service rate limit exceeded")
	ErrEmptyScript  = errors.New("voice script is empty")
	ErrNoAudio      = errors.New("voice response contained no audio")
)

// IsRetryable reports whether a synthesis error is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimit)
}

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	// Synthesize renders text with the configured voice and returns MP3 bytes.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Actor is one voice actor offered by the API.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Config contains configuration for the NijiVoice client
type Config struct {
	APIKey  string
	BaseURL string
	Voice   domain.Persona // VoiceActorID, VoiceStyleID and VoiceSpeed are used
	Timeout time.Duration
}

// Client is the NijiVoice implementation of Synthesizer
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a NijiVoice client
func New(config Config, logger *slog.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("nijivoice API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Voice.VoiceSpeed == "" {
		config.Voice.VoiceSpeed = "1.0"
	}

	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// Synthesize generates MP3 audio for text
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyScript
	}
	if c.config.Voice.VoiceActorID == "" {
		return nil, fmt.Errorf("voice actor id is not configured")
	}
	if r := []rune(text); len(r) > MaxScriptLength {
		text = string(r[:MaxScriptLength])
	}

	body, err := json.Marshal(generateRequest{
		Script:         text,
		Speed:          c.config.Voice.VoiceSpeed,
		EmotionalLevel: "0.1",
		SoundDuration:  "0.1",
		Format:         "mp3",
		StyleID:        c.config.Voice.VoiceStyleID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/platform/v1/voice-actors/%s/generate-voice", c.config.BaseURL, c.config.Voice.VoiceActorID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)

	start := time.Now()
	audio, err := c.do(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Voice synthesized", "chars", len([]rune(text)), "bytes", len(audio), "duration", time.Since(start))
	return audio, nil
}

// ListActors returns every voice actor available to the API key
func (c *Client) ListActors(ctx context.Context) ([]Actor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/v1/voice-actors", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("x-api-key", c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, data)
	}

	// The endpoint has returned both a bare array and {"voiceActors": [...]}.
	var actors []Actor
	if err := json.Unmarshal(data, &actors); err == nil {
		return actors, nil
	}
	var wrapped struct {
		VoiceActors []Actor `json:"voiceActors"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal voice actors: %w", err)
	}
	return wrapped.VoiceActors, nil
}

// do executes a generate request. The API answers either with raw audio or
// with JSON carrying a download URL or base64 audio.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, data)
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if len(data) == 0 {
			return nil, ErrNoAudio
		}
		return data, nil
	}

	var gen generateResponse
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	switch {
	case gen.GeneratedVoice.Base64Audio != "":
		audio, err := base64.StdEncoding.DecodeString(gen.GeneratedVoice.Base64Audio)
		if err != nil {
			return nil, fmt.Errorf("decode audio: %w", err)
		}
		return audio, nil
	case gen.GeneratedVoice.AudioFileDownloadURL != "":
		return c.download(req.Context(), gen.GeneratedVoice.AudioFileDownloadURL)
	case gen.GeneratedVoice.AudioFileURL != "":
		return c.download(req.Context(), gen.GeneratedVoice.AudioFileURL)
	}
	return nil, ErrNoAudio
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download status %d", ErrUnavailable, resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}
	return audio, nil
}

func mapHTTPError(statusCode int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimit
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInternalServerError:
		return ErrUnavailable
	default:
		return fmt.Errorf("voice API error (status %d): %s", statusCode, msg)
	}
}

// EstimateDuration approximates playback length for the chat platform,
// which requires a duration on audio messages.
func EstimateDuration(text string) time.Duration {
	d := time.Duration(len([]rune(text))) * 150 * time.Millisecond
	if d < time.Second {
		return time.Second
	}
	return d
}

type generateRequest struct {
	Script         string `json:"script"`
	Speed          string `json:"speed"`
	EmotionalLevel string `json:"emotionalLevel"`
	SoundDuration  string `json:"soundDuration"`
	Format         string `json:"format"`
	StyleID        int    `json:"style_id"`
}

type generateResponse struct {
	GeneratedVoice struct {
		AudioFileURL         string `json:"audioFileUrl"`
		AudioFileDownloadURL string `json:"audioFileDownloadUrl"`
		Base64Audio          string `json:"base64Audio"`
		Duration             int    `json:"duration"`
	} `json:"generatedVoice"`
}
