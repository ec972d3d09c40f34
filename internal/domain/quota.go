// Package domain contains core business types and interfaces.
//
// This file defines the per-user character quota: the usage record, the
// policy constants it is evaluated against, and the gate decisions.
package domain

import (
	"time"
	"unicode/utf8"
)

// UsageRecord is the persisted character counter for one user.
//
// TotalChars only grows. NoticeSent flips to true once the user has been told
// the quota is exhausted and is reset whenever CharLimit is raised.
type UsageRecord struct {
	UserID     string
	TotalChars int64
	CharLimit  int64
	NoticeSent bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Exhausted reports whether the user has reached the ceiling.
func (u UsageRecord) Exhausted() bool {
	return u.TotalChars >= u.CharLimit
}

// Remaining returns how many characters are left after spending pending more.
func (u UsageRecord) Remaining(pending int64) int64 {
	left := u.CharLimit - u.TotalChars - pending
	if left < 0 {
		return 0
	}
	return left
}

// QuotaPolicy holds the quota constants.
type QuotaPolicy struct {
	FreeCharLimit int64 `validate:"gt=0"`
	CharsPerBlock int64 `validate:"gt=0"`
	WarnThreshold int64 `validate:"gte=0"`
}

// DefaultQuotaPolicy is used when the environment does not override it.
var DefaultQuotaPolicy = QuotaPolicy{
	FreeCharLimit: 3000,
	CharsPerBlock: 10000,
	WarnThreshold: 200,
}

// NewUsageRecord returns the zero-valued record a user without history starts from.
func (p QuotaPolicy) NewUsageRecord(userID string) UsageRecord {
	return UsageRecord{
		UserID:    userID,
		CharLimit: p.FreeCharLimit,
	}
}

// DecisionKind is the outcome of evaluating a user's quota before replying.
type DecisionKind string

const (
	DecisionProceed              DecisionKind = "proceed"
	DecisionWarnNearLimit        DecisionKind = "warn_near_limit"
	DecisionExhaustedFirstNotice DecisionKind = "exhausted_first_notice"
	DecisionExhaustedSilent      DecisionKind = "exhausted_silent"
	DecisionUnavailable          DecisionKind = "unavailable"
)

// AllowsReply reports whether reply generation should continue.
func (k DecisionKind) AllowsReply() bool {
	return k == DecisionProceed || k == DecisionWarnNearLimit
}

// Decision is returned by the quota gate.
type Decision struct {
	Kind      DecisionKind
	Usage     UsageRecord
	Remaining int64  // characters left once the incoming message is counted
	Notice    string // text to send for warn, first-notice and unavailable decisions
	ShortURL  string // checkout link issued with the first notice
}

// Classify maps a usage record to a decision kind, ignoring the notice claim.
// Exhausted records are reported as ExhaustedFirstNotice when no notice has
// been sent yet; the caller still has to win the claim in the store.
func (p QuotaPolicy) Classify(u UsageRecord) DecisionKind {
	switch {
	case u.Exhausted() && u.NoticeSent:
		return DecisionExhaustedSilent
	case u.Exhausted():
		return DecisionExhaustedFirstNotice
	case u.TotalChars >= u.CharLimit-p.WarnThreshold:
		return DecisionWarnNearLimit
	default:
		return DecisionProceed
	}
}

// CountChars counts characters the way quota is charged: one per code point.
func CountChars(s string) int64 {
	return int64(utf8.RuneCountInString(s))
}
