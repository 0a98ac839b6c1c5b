// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_requests_total",
			Help: "Total number of chat messages answered, by response source and intent",
		},
		[]string{"source", "intent"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_stage_failures_total",
			Help: "Total number of pipeline stage failures that fell through",
		},
		[]string{"stage", "error_code"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_request_duration_seconds",
			Help:    "Duration of chat message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SandboxRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_sandbox_rejections_total",
			Help: "Total number of query expressions rejected by the sandbox, by validation layer",
		},
		[]string{"layer"},
	)

	FAQHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_faq_hits_total",
			Help: "Total number of FAQ answers served, by matching tier",
		},
		[]string{"tier"},
	)

	ClarificationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_clarifications_active",
			Help: "Number of clarification sessions opened and not yet resolved",
		},
	)
)
