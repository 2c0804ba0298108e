// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal counts finished generations by resource type, provider and status.
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genstudio",
		Name:      "generations_total",
		Help:      "Generations by resource type, provider and terminal status.",
	}, []string{"type", "provider", "status"})

	// QuotaDenialsTotal counts admissions rejected by the plan cap.
	QuotaDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genstudio",
		Name:      "quota_denials_total",
		Help:      "Generation requests rejected because the monthly cap was reached.",
	}, []string{"type"})

	// ProviderDuration tracks provider call latency.
	ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "genstudio",
		Name:      "provider_duration_seconds",
		Help:      "Provider call duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	// WebhookEventsTotal counts Stripe webhook deliveries by event type and outcome.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genstudio",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook deliveries by event type and outcome.",
	}, []string{"event_type", "outcome"})
)
