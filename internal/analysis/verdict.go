package analysis

import "safeguard/backend/internal/models"

// Message keys resolved by the localizer into user-facing suggestions.
const (
	SuggestionContentBlocked   = "content_blocked"
	SuggestionSupportAvailable = "support_available"
	SuggestionHelpline         = "helpline"
)

// BuildResult assembles the verdict for a set of flags:
// blocked iff any flag is Critical, approved unless blocked or any flag is High,
// and review required when any flag is Medium or above.
func BuildResult(flags []models.ModerationFlag) *models.ModerationResult {
	result := &models.ModerationResult{
		Approved: true,
		Flags:    flags,
	}
	if result.Flags == nil {
		result.Flags = []models.ModerationFlag{}
	}

	for _, f := range flags {
		switch f.Severity {
		case models.SeverityCritical:
			result.Blocked = true
			result.Approved = false
			result.RequiresReview = true
		case models.SeverityHigh:
			result.Approved = false
			result.RequiresReview = true
		case models.SeverityMedium:
			result.RequiresReview = true
		}
	}

	return result
}

// SuggestionKeys picks the safety messages to show the author, deduplicated and
// in a fixed order.
func SuggestionKeys(result *models.ModerationResult) []string {
	var safeguarding bool
	for _, f := range result.Flags {
		if f.Kind == models.KindSafeguardingConcern {
			safeguarding = true
			break
		}
	}

	var keys []string
	if result.Blocked {
		keys = append(keys, SuggestionContentBlocked)
	}
	if safeguarding {
		keys = append(keys, SuggestionSupportAvailable)
	}
	if result.Blocked || safeguarding {
		keys = append(keys, SuggestionHelpline)
	}
	return keys
}
