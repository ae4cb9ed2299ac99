package config

import "time"

const (
	// Classification
	SafeguardingKeywordThreshold = 3

	// Recording
	RedactedContent = "[REDACTED: critical safeguarding content withheld from audit store]"

	// Risk history
	RiskWindow                = 30 * 24 * time.Hour
	RiskHighSeverityThreshold = 3
	RiskTotalAlertsThreshold  = 5
	RiskRecurringPatternsCap  = 10

	// Side effects
	DefaultStoreTimeout      = 5 * time.Second
	DefaultRetryInterval     = 200 * time.Millisecond
	StoreRetries             = 1
	DefaultEscalationWorkers = 8
)
