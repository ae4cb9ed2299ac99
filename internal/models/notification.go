package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationSafeguardingCritical NotificationType = "SAFEGUARDING_CRITICAL"
)

type NotificationPriority string

const (
	NotificationPriorityUrgent NotificationPriority = "URGENT"
)

// Notification is an urgent message to one DSL about one Critical alert.
// Message references the alert and the reporting user, never the submitted text.
type Notification struct {
	ID             string               `gorm:"primaryKey;type:uuid" json:"id"`
	RecipientID    string               `gorm:"type:text;not null;index" json:"recipient_id"`
	AlertID        string               `gorm:"type:uuid;not null;index" json:"alert_id"`
	Type           NotificationType     `gorm:"type:text;not null" json:"type"`
	Title          string               `gorm:"type:text;not null" json:"title"`
	Message        string               `gorm:"type:text;not null" json:"message"`
	Priority       NotificationPriority `gorm:"type:text;not null" json:"priority"`
	RequiresAction bool                 `json:"requires_action"`
	ActionURL      string               `gorm:"type:text" json:"action_url"`
	CreatedAt      time.Time            `json:"created_at"`
}

// BeforeCreate generates an ID when the caller has not assigned one.
func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}
