package models

import "time"

type IncidentKind string

const (
	IncidentAlertPersistFailed    IncidentKind = "ALERT_PERSIST_FAILED"
	IncidentDSLRosterEmpty        IncidentKind = "DSL_ROSTER_EMPTY"
	IncidentDSLRosterUnavailable  IncidentKind = "DSL_ROSTER_UNAVAILABLE"
	IncidentEscalationUndelivered IncidentKind = "ESCALATION_UNDELIVERED"
	IncidentQueueEnqueueExhausted IncidentKind = "QUEUE_ENQUEUE_EXHAUSTED"
)

// Incident is an operational failure that could cause a safeguarding signal to
// be lost. It carries identifiers and severity only, never submitted content.
type Incident struct {
	ID         string       `json:"id"`
	Kind       IncidentKind `json:"kind"`
	AlertID    string       `json:"alert_id,omitempty"`
	UserID     string       `json:"user_id,omitempty"`
	Severity   Severity     `json:"severity,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}
