package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yuilabs/minami/internal/repository"
)

// Job type constants. These must match the JobHandler.Type() values.
const (
	JobTypeSynthesizeVoice = "synthesize_voice"
)

// Priority constants for job scheduling
const (
	PriorityNormal = 10
	PriorityHigh   = 20
)

// SynthesizeVoicePayload is the payload for voice reply jobs.
type SynthesizeVoicePayload struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// EnqueueOption customizes job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = p.ScheduledAt.Add(delay)
	}
}

// EnqueueJob marshals payload and inserts a pending job.
func EnqueueJob(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload any,
	opts ...EnqueueOption,
) (repository.Job, error) {
	params, err := enqueueParams(jobType, payload, time.Now(), opts...)
	if err != nil {
		return repository.Job{}, err
	}

	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

func enqueueParams(jobType string, payload any, now time.Time, opts ...EnqueueOption) (repository.EnqueueJobParams, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.EnqueueJobParams{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: now,
	}

	for _, opt := range opts {
		opt(&params)
	}
	return params, nil
}

// EnqueueSynthesizeVoice enqueues a job that voices text and pushes it to userID.
func EnqueueSynthesizeVoice(
	ctx context.Context,
	queries *repository.Queries,
	userID string,
	text string,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := SynthesizeVoicePayload{
		UserID: userID,
		Text:   text,
	}

	return EnqueueJob(ctx, queries, JobTypeSynthesizeVoice, payload, opts...)
}

// QueueConfig controls how voice jobs are scheduled.
type QueueConfig struct {
	// MaxAttempts is the retry budget of one voice job. Zero keeps the
	// enqueue default.
	MaxAttempts int32

	// Delay holds a job back so the pushed audio lands after the text reply.
	Delay time.Duration
}

// Queue adapts the enqueue helpers to the chat flow's VoiceQueue interface.
type Queue struct {
	queries *repository.Queries
	opts    []EnqueueOption
}

// NewQueue creates a Queue writing through queries.
func NewQueue(queries *repository.Queries, config QueueConfig) *Queue {
	opts := []EnqueueOption{WithPriority(PriorityHigh)}
	if config.MaxAttempts > 0 {
		opts = append(opts, WithMaxAttempts(config.MaxAttempts))
	}
	if config.Delay > 0 {
		opts = append(opts, WithDelay(config.Delay))
	}
	return &Queue{queries: queries, opts: opts}
}

// EnqueueVoice schedules a voice reply for userID.
func (q *Queue) EnqueueVoice(ctx context.Context, userID, text string) error {
	_, err := EnqueueSynthesizeVoice(ctx, q.queries, userID, text, q.opts...)
	return err
}
