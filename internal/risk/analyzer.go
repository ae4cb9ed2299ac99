// Package risk summarises a user's trailing alert history into a risk level.
package risk

import (
	"context"
	"fmt"
	"time"

	"safeguard/backend/internal/config"
	"safeguard/backend/internal/models"
)

// AlertReader is the read side of the alert store the analyzer needs.
type AlertReader interface {
	GetAlertsForUserSince(ctx context.Context, userID string, since time.Time) ([]models.SafeguardingAlert, error)
}

// Analyzer computes UserRiskProfiles on demand. It only reads.
type Analyzer struct {
	alerts AlertReader
	window time.Duration
	now    func() time.Time
}

func NewAnalyzer(alerts AlertReader) *Analyzer {
	return &Analyzer{
		alerts: alerts,
		window: config.RiskWindow,
		now:    time.Now,
	}
}

// WithClock replaces the analyzer's time source.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Analyze reads the user's alerts inside the trailing window and grades them.
func (a *Analyzer) Analyze(ctx context.Context, userID string) (*models.UserRiskProfile, error) {
	now := a.now().UTC()
	since := now.Add(-a.window)

	alerts, err := a.alerts.GetAlertsForUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts for %s: %w", userID, err)
	}

	profile := Summarize(alerts)
	profile.UserID = userID
	profile.WindowStart = since
	profile.ComputedAt = now
	return profile, nil
}

// Summarize grades alerts that are already known to be inside the window and
// ordered newest first.
//
// High when any alert is Critical or at least three are High. Medium when any
// alert is High or there are at least five alerts. Low otherwise.
func Summarize(alerts []models.SafeguardingAlert) *models.UserRiskProfile {
	var critical, high int
	patterns := make([]string, 0, config.RiskRecurringPatternsCap)
	seen := make(map[string]bool)

	for _, alert := range alerts {
		switch alert.Severity {
		case models.SeverityCritical:
			critical++
		case models.SeverityHigh:
			high++
		}

		for _, kw := range safeguardingKeywords(alert) {
			if len(patterns) >= config.RiskRecurringPatternsCap {
				break
			}
			if seen[kw] {
				continue
			}
			seen[kw] = true
			patterns = append(patterns, kw)
		}
	}

	level := models.RiskLow
	switch {
	case critical > 0 || high >= config.RiskHighSeverityThreshold:
		level = models.RiskHigh
	case high > 0 || len(alerts) >= config.RiskTotalAlertsThreshold:
		level = models.RiskMedium
	}

	return &models.UserRiskProfile{
		RiskLevel:    level,
		RecentAlerts: critical + high,
		TotalAlerts:  len(alerts),
		Patterns:     patterns,
	}
}

// safeguardingKeywords prefers the flags; the denormalised column covers rows
// whose flags could not be decoded.
func safeguardingKeywords(alert models.SafeguardingAlert) []string {
	var out []string
	for _, f := range alert.Flags {
		if f.Kind != models.KindSafeguardingConcern {
			continue
		}
		if len(f.Keywords) > 0 {
			out = append(out, f.Keywords...)
		} else if f.Keyword != "" {
			out = append(out, f.Keyword)
		}
	}
	if len(out) == 0 {
		out = append(out, alert.Keywords...)
	}
	return out
}
