// Package line talks to the LINE Messaging API: it verifies and parses
// webhook callbacks and sends reply and push messages.
package line

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/yuilabs/minami/internal/domain"
)

var (
	// ErrInvalidSignature is returned when x-line-signature does not match the body.
	ErrInvalidSignature = errors.New("line: invalid signature")

	// ErrUnreachable is returned when the platform refuses delivery to a
	// user, typically because the bot was blocked.
	ErrUnreachable = errors.New("line: user unreachable")

	// ErrNoMessages is returned when there is nothing to send.
	ErrNoMessages = errors.New("line: no messages")
)

// MaxMessagesPerRequest is the platform limit for one reply or push.
const MaxMessagesPerRequest = 5

// TextEvent is a text message sent by a user.
type TextEvent struct {
	UserID     string
	ReplyToken string
	Text       string
	EventID    string
}

// Events is the subset of a webhook callback the service acts on.
type Events struct {
	Texts      []TextEvent
	Unfollowed []string // users who blocked the bot
	Skipped    int      // events of other types
}

// ParseRequest verifies the signature and extracts text messages and
// unfollows.
func ParseRequest(channelSecret string, r *http.Request) (Events, error) {
	cb, err := webhook.ParseRequest(channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			return Events{}, ErrInvalidSignature
		}
		return Events{}, fmt.Errorf("parse line webhook: %w", err)
	}

	var out Events
	for _, event := range cb.Events {
		switch e := event.(type) {
		case webhook.MessageEvent:
			msg, ok := e.Message.(webhook.TextMessageContent)
			userID := sourceUserID(e.Source)
			if !ok || userID == "" {
				out.Skipped++
				continue
			}
			out.Texts = append(out.Texts, TextEvent{
				UserID:     userID,
				ReplyToken: e.ReplyToken,
				Text:       msg.Text,
				EventID:    e.WebhookEventId,
			})
		case webhook.UnfollowEvent:
			if userID := sourceUserID(e.Source); userID != "" {
				out.Unfollowed = append(out.Unfollowed, userID)
			}
		default:
			out.Skipped++
		}
	}
	return out, nil
}

func sourceUserID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}

// Client sends messages through the Messaging API.
type Client struct {
	api     *messaging_api.MessagingApiAPI
	timeout time.Duration
	logger  *slog.Logger
}

// ClientConfig configures a Client.
type ClientConfig struct {
	ChannelAccessToken string
	Timeout            time.Duration
	Endpoint           string // overrides the API base URL, for tests
}

// NewClient creates a Messaging API client.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := []messaging_api.MessagingApiAPIOption{
		messaging_api.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(cfg.Endpoint))
	}

	api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelAccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create messaging api client: %w", err)
	}

	return &Client{
		api:     api,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "line"),
	}, nil
}

// Reply answers a webhook event with up to five messages.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs []domain.OutgoingMessage) error {
	sdkMsgs, err := toSDKMessages(msgs)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, _, err := c.api.WithContext(ctx).ReplyMessageWithHttpInfo(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   sdkMsgs,
	})
	if err != nil {
		return classify("reply", res, err)
	}
	return nil
}

// Push sends messages to a user outside of a reply.
func (c *Client) Push(ctx context.Context, userID string, msgs []domain.OutgoingMessage) error {
	sdkMsgs, err := toSDKMessages(msgs)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, _, err := c.api.WithContext(ctx).PushMessageWithHttpInfo(&messaging_api.PushMessageRequest{
		To:       userID,
		Messages: sdkMsgs,
	}, "")
	if err != nil {
		return classify("push", res, err)
	}
	return nil
}

// classify maps Messaging API failures onto sentinel errors. A 400 on push
// means the recipient cannot receive messages; 403 and 404 do the same for
// blocked or unknown users.
func classify(op string, res *http.Response, err error) error {
	if res == nil {
		return fmt.Errorf("line %s: %w", op, err)
	}
	switch res.StatusCode {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
		if op == "push" {
			return fmt.Errorf("line %s: %w: %v", op, ErrUnreachable, err)
		}
	case http.StatusTooManyRequests:
		return domain.RateLimit("line." + op)
	}
	return fmt.Errorf("line %s: status %d: %w", op, res.StatusCode, err)
}

func toSDKMessages(msgs []domain.OutgoingMessage) ([]messaging_api.MessageInterface, error) {
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}
	if len(msgs) > MaxMessagesPerRequest {
		msgs = msgs[:MaxMessagesPerRequest]
	}

	out := make([]messaging_api.MessageInterface, 0, len(msgs))
	for _, m := range msgs {
		switch m.Kind {
		case domain.OutgoingText:
			out = append(out, messaging_api.TextMessage{Text: m.Text})
		case domain.OutgoingAudio:
			out = append(out, messaging_api.AudioMessage{
				OriginalContentUrl: m.AudioURL,
				Duration:           m.Duration.Milliseconds(),
			})
		default:
			return nil, fmt.Errorf("line: unsupported message kind %q", m.Kind)
		}
	}
	return out, nil
}
