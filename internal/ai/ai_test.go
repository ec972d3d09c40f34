package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", EAIRateLimit, true},
		{"wrapped timeout", WrapError("generate", EAITimeout), true},
		{"unavailable", EAIUnavailable, true},
		{"unauthorized", EAIUnauthorized, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRetry(t *testing.T) {
	cfg := ProviderConfig{MaxRetries: 3, RetryBaseDelay: time.Millisecond, RequestTimeout: time.Second}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		got, err := Retry(context.Background(), cfg, nil, func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", EAIRateLimit
			}
			return "ok", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), cfg, nil, func(ctx context.Context) (string, error) {
			calls++
			return "", EAIUnauthorized
		})
		assert.ErrorIs(t, err, EAIUnauthorized)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		retries := 0
		_, err := Retry(context.Background(), cfg, func(int, time.Duration, error) { retries++ }, func(ctx context.Context) (int, error) {
			return 0, EAIUnavailable
		})
		assert.ErrorIs(t, err, EAIUnavailable)
		assert.Equal(t, 2, retries)
	})
}
