package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxpilot_webhook_requests_total",
			Help: "Inbound webhook requests by endpoint and outcome",
		},
		[]string{"endpoint", "status"},
	)

	Captures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxpilot_captures_total",
			Help: "Capture pipeline runs by outcome",
		},
		[]string{"status"}, // created, empty, failed
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxpilot_classifications_total",
			Help: "Classifier runs by outcome",
		},
		[]string{"status"}, // labeled, unlabeled, degraded
	)

	DraftsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxpilot_drafts_generated_total",
			Help: "Draft generate/regenerate calls that produced a draft",
		},
	)

	DraftsApproved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxpilot_drafts_approved_total",
			Help: "Drafts committed to the mail provider",
		},
	)

	AICallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inboxpilot_ai_call_latency_seconds",
			Help:    "AI capability call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~100s
		},
		[]string{"capability"}, // classify, cleanup, generate, transcribe
	)
)

// ObserveAICall records one AI capability call's duration.
func ObserveAICall(capability string, start time.Time) {
	AICallLatency.WithLabelValues(capability).Observe(time.Since(start).Seconds())
}
