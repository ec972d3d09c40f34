package worker

import (
	"fmt"
	"time"
)

// Config holds the background worker settings.
type Config struct {
	// Concurrency is the number of polling goroutines.
	Concurrency int

	// PollInterval is how often an idle goroutine checks for due jobs.
	PollInterval time.Duration

	// JobTimeout bounds one handler run. Voice jobs call the TTS API, the
	// object store and the LINE push API in sequence.
	JobTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for running jobs.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is the age after which a 'running' job is assumed
	// orphaned by a crashed process and put back to 'pending' on startup.
	StaleJobThreshold time.Duration
}

// DefaultConfig returns the settings used when the environment has none.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      2 * time.Second,
		JobTimeout:        2 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// WithOverrides returns c with every non-zero argument applied.
func (c Config) WithOverrides(concurrency int, pollInterval, jobTimeout time.Duration) Config {
	if concurrency > 0 {
		c.Concurrency = concurrency
	}
	if pollInterval > 0 {
		c.PollInterval = pollInterval
	}
	if jobTimeout > 0 {
		c.JobTimeout = jobTimeout
	}
	return c
}

// Validate checks that the values are usable.
func (c Config) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 100 {
		return fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency)
	}
	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("poll interval must be at least 100ms, got %v", c.PollInterval)
	}
	if c.JobTimeout < time.Second {
		return fmt.Errorf("job timeout must be at least 1 second, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	if c.StaleJobThreshold <= c.JobTimeout {
		return fmt.Errorf("stale job threshold (%v) must exceed job timeout (%v)", c.StaleJobThreshold, c.JobTimeout)
	}
	return nil
}
