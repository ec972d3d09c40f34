package worker

import (
	"context"
	"errors"
)

// JobHandler runs one type of background job.
type JobHandler interface {
	// Type returns the job_type value this handler processes.
	Type() string

	// Handle executes the job. payload is the raw JSON stored with the job.
	// Return NewPermanentError to fail the job without further attempts.
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a job failure that retrying cannot fix, such as a
// malformed payload or a user who blocked the bot.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err so the worker will not retry the job.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
