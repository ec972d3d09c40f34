package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yuilabs/minami/internal/ai"
	"github.com/yuilabs/minami/internal/domain"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	// DefaultMaxTokens bounds a chat reply.
	DefaultMaxTokens = 1024
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // overrides APIBaseURL in tests
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using Anthropic's Messages API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Anthropic AI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	return &Provider{
		config: config,
		client: &http.Client{},
		logger: logger,
	}, nil
}

// GenerateReply sends the conversation to Claude and returns the reply text
func (p *Provider) GenerateReply(ctx context.Context, params ai.ReplyParams) (*ai.ReplyResult, error) {
	startTime := time.Now()

	body, err := p.buildRequestBody(params)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	onRetry := func(attempt int, delay time.Duration, err error) {
		p.logger.Info("Retrying AI request", "provider", "anthropic", "attempt", attempt, "delay", delay, "error", err)
	}
	resp, err := ai.Retry(ctx, p.config.ProviderConfig, onRetry, func(ctx context.Context) (*apiResponse, error) {
		return p.executeRequest(ctx, body)
	})
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	text := replyText(resp)
	if text == "" {
		return nil, ai.WrapError("parse response", ai.EAIEmptyReply)
	}

	return &ai.ReplyResult{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        p.config.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			Duration:     time.Since(startTime),
		},
	}, nil
}

// buildRequestBody maps the conversation onto the Messages API. The persona
// prompt goes into the top-level system field.
func (p *Provider) buildRequestBody(params ai.ReplyParams) ([]byte, error) {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := apiRequest{
		Model:     p.config.Model,
		MaxTokens: maxTokens,
		System:    params.SystemPrompt,
		Messages:  make([]apiMessage, 0, len(params.Messages)),
	}
	for _, m := range params.Messages {
		role := "user"
		if m.Role == domain.RoleAssistant {
			role = "assistant"
		}
		reqBody.Messages = append(reqBody.Messages, apiMessage{
			Role:    role,
			Content: []apiContent{{Type: "text", Text: m.Content}},
		})
	}
	if len(reqBody.Messages) == 0 {
		return nil, errors.New("conversation is empty")
	}

	return json.Marshal(reqBody)
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ai.EAITimeout
		}
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to provider errors
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, 529:
		return ai.EAIUnavailable
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s", errResp.Error.Message)
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

func replyText(resp *apiResponse) string {
	var parts []string
	for _, c := range resp.Content {
		if c.Type == "text" && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

// API request/response types

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []apiContentOutput `json:"content"`
	Model   string             `json:"model"`
	Usage   apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
