package domain

import "time"

// Role is the speaker of a stored conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one stored conversation turn.
type ChatMessage struct {
	UserID    string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Profile holds durable per-user state.
type Profile struct {
	UserID      string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasName reports whether onboarding has captured how to address the user.
func (p *Profile) HasName() bool {
	return p != nil && p.DisplayName != ""
}

// MaxNameLength is the longest text accepted as a name during onboarding.
const MaxNameLength = 19

// OutgoingKind distinguishes outgoing message payloads.
type OutgoingKind string

const (
	OutgoingText  OutgoingKind = "text"
	OutgoingAudio OutgoingKind = "audio"
)

// OutgoingMessage is a message to deliver to the user on the chat platform.
type OutgoingMessage struct {
	Kind     OutgoingKind
	Text     string
	AudioURL string
	Duration time.Duration

	// QuotaNotice marks the one-time exhausted notice. Its claim must be
	// released when delivery fails so the next message can retry it.
	QuotaNotice bool
}

// TextMessage is a convenience constructor for a text reply.
func TextMessage(text string) OutgoingMessage {
	return OutgoingMessage{Kind: OutgoingText, Text: text}
}

// AudioMessage is a convenience constructor for an audio reply.
func AudioMessage(url string, duration time.Duration) OutgoingMessage {
	return OutgoingMessage{Kind: OutgoingAudio, AudioURL: url, Duration: duration}
}
