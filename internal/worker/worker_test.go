package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", mutate: func(*Config) {}},
		{name: "concurrency too low", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: true},
		{name: "concurrency too high", mutate: func(c *Config) { c.Concurrency = 101 }, wantErr: true},
		{name: "poll interval too short", mutate: func(c *Config) { c.PollInterval = 10 * time.Millisecond }, wantErr: true},
		{name: "stale threshold below job timeout", mutate: func(c *Config) { c.StaleJobThreshold = c.JobTimeout }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_WithOverrides(t *testing.T) {
	cfg := DefaultConfig().WithOverrides(4, 0, 90*time.Second)

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, DefaultConfig().PollInterval, cfg.PollInterval)
	assert.Equal(t, 90*time.Second, cfg.JobTimeout)
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "permanent error", err: NewPermanentError(context.Canceled), want: true},
		{name: "wrapped permanent error", err: fmt.Errorf("push: %w", NewPermanentError(context.Canceled)), want: true},
		{name: "regular error", err: context.Canceled, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}
}

func TestSynthesizeVoicePayload_JSON(t *testing.T) {
	data, err := json.Marshal(SynthesizeVoicePayload{UserID: "U1", Text: "おはよ"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"U1","text":"おはよ"}`, string(data))
}
