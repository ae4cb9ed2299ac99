package models

import "time"

// RiskLevel summarises how concerning a user's recent history is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// UserRiskProfile is computed on every query from persisted alerts and never stored.
type UserRiskProfile struct {
	UserID    string    `json:"user_id"`
	RiskLevel RiskLevel `json:"risk_level"`
	// RecentAlerts counts High and Critical alerts inside the window.
	RecentAlerts int `json:"recent_alerts"`
	// TotalAlerts counts every alert inside the window.
	TotalAlerts int `json:"total_alerts"`
	// Patterns are recurring safeguarding keywords, newest first.
	Patterns    []string  `json:"patterns"`
	WindowStart time.Time `json:"window_start"`
	ComputedAt  time.Time `json:"computed_at"`
}
