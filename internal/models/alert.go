package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// AlertStatus tracks where a SafeguardingAlert is in its staff lifecycle.
type AlertStatus string

const (
	AlertStatusReview    AlertStatus = "REVIEW"
	AlertStatusPending   AlertStatus = "PENDING"
	AlertStatusEscalated AlertStatus = "ESCALATED"
	AlertStatusResolved  AlertStatus = "RESOLVED"
)

// StatusForSeverity derives the initial alert status from its max severity.
func StatusForSeverity(s Severity) AlertStatus {
	switch s {
	case SeverityCritical:
		return AlertStatusEscalated
	case SeverityHigh:
		return AlertStatusPending
	default:
		return AlertStatusReview
	}
}

// SafeguardingAlert is the durable audit record of one flagged submission.
// Alerts are never deleted, so there is no soft-delete column.
type SafeguardingAlert struct {
	// ID is generated before the write so escalation and incidents can reference it
	// even when persistence fails.
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// UserID is the author of the submission.
	UserID string `gorm:"type:text;not null;index:idx_alert_user_created" json:"user_id"`
	// Content is the raw text, or the redaction placeholder for Critical alerts.
	Content string `gorm:"type:text;not null" json:"content"`
	// Context is the caller-supplied label such as "chat" or "assignment".
	Context string   `gorm:"type:text" json:"context"`
	Flags   FlagList `gorm:"type:jsonb;not null" json:"flags"`
	// Keywords are the SafeguardingConcern keywords, denormalised for risk queries.
	Keywords pq.StringArray `gorm:"type:text[]" json:"keywords,omitempty"`
	Metadata Metadata       `gorm:"type:jsonb" json:"metadata,omitempty"`
	Status   AlertStatus    `gorm:"type:text;not null;index" json:"status"`
	Severity Severity       `gorm:"type:text;not null" json:"severity"`

	ResolvedBy *string    `gorm:"type:text" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_alert_user_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates an ID when the caller has not assigned one.
func (a *SafeguardingAlert) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}

// FlagList is a JSON-serialised list of flags stored in a single column.
type FlagList []ModerationFlag

// Value implements driver.Valuer.
func (l FlagList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Rows carrying an unknown flag kind or severity
// are rejected rather than graded as something they are not.
func (l *FlagList) Scan(src any) error {
	var flags []ModerationFlag
	if err := scanJSON(src, &flags); err != nil {
		return err
	}
	for i, f := range flags {
		if !f.Kind.Valid() {
			return fmt.Errorf("flag %d has unknown kind %q", i, f.Kind)
		}
		if !f.Severity.Valid() {
			return fmt.Errorf("flag %d has unknown severity %q", i, f.Severity)
		}
	}
	*l = flags
	return nil
}

// Metadata is caller-supplied context stored as a JSON object.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	return scanJSON(src, m)
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
