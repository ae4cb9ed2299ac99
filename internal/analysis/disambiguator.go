package analysis

import (
	"strings"

	"safeguard/backend/internal/models"
	"safeguard/backend/internal/patterns"
)

// SubjectKey is the metadata key callers use to pass the lesson subject.
const SubjectKey = "subject"

// Disambiguator re-grades flags raised by curriculum material. The context and
// subject come from the trusted caller and are never inferred from the text.
type Disambiguator struct {
	catalogue *patterns.Catalogue
}

func NewDisambiguator(c *patterns.Catalogue) *Disambiguator {
	return &Disambiguator{catalogue: c}
}

// Disambiguate returns a copy of flags in which every InappropriateContent flag
// of Medium severity or lower, raised by a pattern with a matching exception, is
// downgraded to ContextualConcern/Low. High and Critical flags are untouched.
func (d *Disambiguator) Disambiguate(flags []models.ModerationFlag, context string, metadata map[string]any) []models.ModerationFlag {
	subject := subjectFrom(metadata)
	out := make([]models.ModerationFlag, len(flags))
	for i, f := range flags {
		out[i] = f
		if f.Kind != models.KindInappropriateContent || f.Pattern == "" {
			continue
		}
		if f.Severity.Rank() > models.SeverityMedium.Rank() {
			continue
		}
		p, ok := d.catalogue.Pattern(f.Pattern)
		if !ok {
			continue
		}
		if label, ok := p.Exceptions.Match(context, subject); ok {
			out[i].Kind = models.KindContextualConcern
			out[i].Severity = models.SeverityLow
			out[i].Context = label
		}
	}
	return out
}

func subjectFrom(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if s, ok := metadata[SubjectKey].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
