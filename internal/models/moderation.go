package models

// FlagKind classifies what sort of finding a ModerationFlag represents.
type FlagKind string

const (
	KindInappropriateContent FlagKind = "INAPPROPRIATE_CONTENT"
	KindSafeguardingConcern  FlagKind = "SAFEGUARDING_CONCERN"
	KindContextualConcern    FlagKind = "CONTEXTUAL_CONCERN"
)

// Valid reports whether k is one of the known flag kinds.
func (k FlagKind) Valid() bool {
	switch k {
	case KindInappropriateContent, KindSafeguardingConcern, KindContextualConcern:
		return true
	}
	return false
}

// Severity grades a flag. The zero value is not a valid severity.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities so they can be compared. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Valid reports whether s is one of the four known grades.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

// MaxSeverity returns the highest severity among flags, or "" if there are none.
func MaxSeverity(flags []ModerationFlag) Severity {
	var highest Severity
	for _, f := range flags {
		if f.Severity.Rank() > highest.Rank() {
			highest = f.Severity
		}
	}
	return highest
}

// ModerationFlag is one classified risk finding for a single submission.
// Pattern and Keyword hold catalogue identifiers and terms, never submitted text.
type ModerationFlag struct {
	Kind     FlagKind `json:"kind"`
	Pattern  string   `json:"pattern,omitempty"`
	Keyword  string   `json:"keyword,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Severity Severity `json:"severity"`
	Context  string   `json:"context,omitempty"`
}

// ModerationResult is the verdict returned for one submission.
type ModerationResult struct {
	Approved       bool             `json:"approved"`
	Flags          []ModerationFlag `json:"flags"`
	RequiresReview bool             `json:"requires_review"`
	Blocked        bool             `json:"blocked"`
	Suggestions    []string         `json:"suggestions,omitempty"`
}

// MaxSeverity is the highest severity carried by the result's flags.
func (r *ModerationResult) MaxSeverity() Severity {
	return MaxSeverity(r.Flags)
}

// Flagged reports whether the result carries at least one flag.
func (r *ModerationResult) Flagged() bool {
	return len(r.Flags) > 0
}
