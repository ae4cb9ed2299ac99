package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueuePriority orders entries in the review queue.
type QueuePriority string

const (
	QueuePriorityNormal QueuePriority = "NORMAL"
	QueuePriorityHigh   QueuePriority = "HIGH"
	QueuePriorityUrgent QueuePriority = "URGENT"
)

// PriorityForSeverity maps an alert severity onto a queue priority.
func PriorityForSeverity(s Severity) QueuePriority {
	switch s {
	case SeverityCritical:
		return QueuePriorityUrgent
	case SeverityHigh:
		return QueuePriorityHigh
	default:
		return QueuePriorityNormal
	}
}

// QueueStatus is the triage state of a ReviewQueueEntry.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "PENDING"
	QueueStatusInProgress QueueStatus = "IN_PROGRESS"
	QueueStatusDone       QueueStatus = "DONE"
)

// ReviewQueueEntry is a prioritised request for human triage of an alert.
type ReviewQueueEntry struct {
	ID       string        `gorm:"primaryKey;type:uuid" json:"id"`
	AlertID  string        `gorm:"type:uuid;not null;uniqueIndex" json:"alert_id"`
	Priority QueuePriority `gorm:"type:text;not null;index" json:"priority"`
	Status   QueueStatus   `gorm:"type:text;not null;index" json:"status"`
	// AssignedTo is the staff member handling the entry, nil until claimed.
	AssignedTo *string   `gorm:"type:text" json:"assigned_to"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate generates an ID when the caller has not assigned one.
func (e *ReviewQueueEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return
}
