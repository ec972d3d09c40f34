package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yuilabs/minami/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	Reply      string
	ReplyError error

	// Call tracking for testing
	Calls      int
	LastParams ai.ReplyParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// GenerateReply returns Reply, or a short canned line echoing the user
func (p *Provider) GenerateReply(ctx context.Context, params ai.ReplyParams) (*ai.ReplyResult, error) {
	p.mu.Lock()
	p.Calls++
	p.LastParams = params
	reply, replyErr := p.Reply, p.ReplyError
	p.mu.Unlock()

	if replyErr != nil {
		return nil, replyErr
	}

	if reply == "" {
		reply = "そうなんだ〜、もっと聞かせてほしいな。"
		if n := len(params.Messages); n > 0 {
			reply = "「" + params.Messages[n-1].Content + "」かぁ、" + reply
		}
	}

	if p.logger != nil {
		p.logger.Debug("Mock AI reply", "user_id", params.UserID, "messages", len(params.Messages))
	}

	return &ai.ReplyResult{
		Text: reply,
		Usage: ai.UsageInfo{
			Model:    "mock",
			Duration: time.Millisecond,
		},
	}, nil
}
