package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yuilabs/minami/internal/ai"
	"github.com/yuilabs/minami/internal/domain"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = goopenai.GPT4

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // overrides the API endpoint in tests
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider with the chat completions API
type Provider struct {
	config Config
	client *goopenai.Client
	logger *slog.Logger
}

// New creates a new OpenAI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Provider{
		config: config,
		client: goopenai.NewClientWithConfig(clientConfig),
		logger: logger,
	}, nil
}

// GenerateReply requests one chat completion for the conversation
func (p *Provider) GenerateReply(ctx context.Context, params ai.ReplyParams) (*ai.ReplyResult, error) {
	startTime := time.Now()

	req := goopenai.ChatCompletionRequest{
		Model:     p.config.Model,
		Messages:  buildMessages(params),
		MaxTokens: params.MaxTokens,
	}

	onRetry := func(attempt int, delay time.Duration, err error) {
		p.logger.Info("Retrying AI request", "provider", "openai", "attempt", attempt, "delay", delay, "error", err)
	}
	resp, err := ai.Retry(ctx, p.config.ProviderConfig, onRetry, func(ctx context.Context) (goopenai.ChatCompletionResponse, error) {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return resp, mapError(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, ai.WrapError("chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ai.WrapError("parse response", ai.EAIEmptyReply)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, ai.WrapError("parse response", ai.EAIEmptyReply)
	}

	return &ai.ReplyResult{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        resp.Model,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			Duration:     time.Since(startTime),
		},
	}, nil
}

func buildMessages(params ai.ReplyParams) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(params.Messages)+1)
	if params.SystemPrompt != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: params.SystemPrompt,
		})
	}
	for _, m := range params.Messages {
		role := goopenai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}

// mapError converts client errors to provider errors so retries apply
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.EAITimeout
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ai.EAIUnauthorized
		case http.StatusTooManyRequests:
			return ai.EAIRateLimit
		case http.StatusRequestTimeout:
			return ai.EAITimeout
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return ai.EAIUnavailable
		}
		if apiErr.Code == "content_filter" {
			return ai.EAIContentPolicy
		}
		return fmt.Errorf("API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= 500 {
			return ai.EAIUnavailable
		}
		return fmt.Errorf("request error (status %d): %w", reqErr.HTTPStatusCode, reqErr.Err)
	}

	// Network errors are typically retryable
	return ai.EAIUnavailable
}
