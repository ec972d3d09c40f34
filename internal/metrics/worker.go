package metrics

import "time"

// JobCompleted records a successful job completion
func JobCompleted(jobType string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, "completed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobFailed records a job that will not be retried
func JobFailed(jobType string) {
	JobsTotal.WithLabelValues(jobType, "failed").Inc()
}

// JobRetried records a failed attempt that was rescheduled
func JobRetried(jobType string) {
	JobRetriesTotal.WithLabelValues(jobType).Inc()
}

// Fallback records a canned reply sent in place of a generated one.
func Fallback(reason string) {
	FallbackReplies.WithLabelValues(reason).Inc()
}

// PostProcessFailed records a failed post-reply step.
func PostProcessFailed(step string) {
	PostProcessFailures.WithLabelValues(step).Inc()
}
