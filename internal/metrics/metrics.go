// Package metrics holds the Prometheus collectors for the moderation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "safeguard"

var (
	// Verdicts counts moderated submissions by highest flag severity ("NONE" when clean).
	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "moderation",
		Name:      "verdicts_total",
		Help:      "Moderated submissions by highest flag severity",
	}, []string{"severity", "blocked"})

	// AlertWrites counts alert record attempts. Labels: outcome (stored, failed)
	AlertWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "writes_total",
		Help:      "Alert record writes by severity and outcome",
	}, []string{"severity", "outcome"})

	// Notifications counts DSL notifications. Labels: outcome (stored, failed, delivered, undelivered)
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "escalation",
		Name:      "notifications_total",
		Help:      "DSL notifications by outcome",
	}, []string{"outcome"})

	QueueEnqueues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "enqueues_total",
		Help:      "Review queue enqueue attempts by priority and outcome",
	}, []string{"priority", "outcome"})

	Incidents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "incidents",
		Name:      "reported_total",
		Help:      "Operational incidents by kind",
	}, []string{"kind"})

	ModerationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "moderation",
		Name:      "duration_seconds",
		Help:      "End-to-end moderation latency including downstream writes",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)

// Outcome labels.
const (
	OutcomeStored      = "stored"
	OutcomeFailed      = "failed"
	OutcomeDelivered   = "delivered"
	OutcomeUndelivered = "undelivered"
)

// BoolLabel renders a boolean label value.
func BoolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
