package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuilabs/minami/internal/domain"
)

// Provider generates in-character chat replies.
type Provider interface {
	// GenerateReply produces the next assistant turn for a conversation.
	GenerateReply(ctx context.Context, params ReplyParams) (*ReplyResult, error)
}

// ReplyParams contains parameters for reply generation
type ReplyParams struct {
	UserID       string               // Chat user, for logging only
	SystemPrompt string               // Persona instructions addressed to the user
	Messages     []domain.ChatMessage // Conversation so far, oldest first, ending with the user's turn
	MaxTokens    int                  // Optional cap on the reply length
}

// ReplyResult contains the generated reply
type ReplyResult struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo tracks API usage for monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// WithDefaults fills unset fields.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 1 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIContentPolicy indicates the request was refused by the provider's content filter
	EAIContentPolicy = errors.New("request violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIEmptyReply indicates the provider returned no text
	EAIEmptyReply = errors.New("ai provider returned an empty reply")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// Retry runs fn until it succeeds, returns a non-retryable error, or
// cfg.MaxRetries attempts are used. Each attempt gets its own timeout and the
// delay doubles after every failure.
func Retry[T any](ctx context.Context, cfg ProviderConfig, onRetry func(attempt int, delay time.Duration, err error), fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		result, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !IsRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		delay := cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
