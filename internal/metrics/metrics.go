package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energy_monitor_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "energy_monitor_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	UpstreamFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energy_monitor_upstream_fetches_total",
			Help: "Upstream fetch attempts by data kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	FallbackServes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energy_monitor_fallback_serves_total",
			Help: "Cache reads answered with the static fallback reading",
		},
		[]string{"kind"},
	)

	AssistantAnswers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energy_monitor_assistant_answers_total",
			Help: "Assistant answers by mode (instant, ai, error)",
		},
		[]string{"mode"},
	)

	EscalationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "energy_monitor_escalation_latency_seconds",
			Help: "Generative backend call latency in seconds",
		},
	)
)
