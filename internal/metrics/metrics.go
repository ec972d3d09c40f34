package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minami"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Background job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of jobs processed",
		},
		[]string{"type", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time distribution",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	JobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Total number of job retry attempts",
		},
		[]string{"type"},
	)
)

// Quota and payment metrics
var (
	QuotaDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_decisions_total",
			Help:      "Quota gate decisions by outcome",
		},
		[]string{"decision"},
	)

	NoticesReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_notices_released_total",
			Help:      "Exhausted notice claims given back after a failed delivery",
		},
	)

	CharsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chars_consumed_total",
			Help:      "Characters charged against user quotas",
		},
	)

	CheckoutLinksIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_links_issued_total",
			Help:      "Checkout links issued",
		},
		[]string{"status"},
	)

	PaymentsCredited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_credited_total",
			Help:      "Payment webhook events by result",
		},
		[]string{"result"}, // "credited", "duplicate", "ignored", "error"
	)
)

// Chat flow metrics
var (
	FallbackReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_replies_total",
			Help:      "Canned replies sent instead of a generated one",
		},
		[]string{"reason"},
	)

	MessagesThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_throttled_total",
			Help:      "Inbound messages dropped by the per-user throttle",
		},
	)

	PostProcessFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_process_failures_total",
			Help:      "Post-reply steps that failed",
		},
		[]string{"step"},
	)

	AIAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_api_calls_total",
			Help:      "Total number of AI API calls",
		},
		[]string{"status"},
	)

	VoiceGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_generated_total",
			Help:      "Voice synthesis attempts",
		},
		[]string{"status"},
	)

	BroadcastPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_pushes_total",
			Help:      "Broadcast push attempts",
		},
		[]string{"status"},
	)
)

// AI token usage (aggregate totals - no user label to avoid cardinality)
var (
	AITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Total AI tokens consumed",
		},
		[]string{"type"}, // "input" or "output"
	)
)
