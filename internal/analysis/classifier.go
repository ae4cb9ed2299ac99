// Package analysis grades raw pattern matches into moderation flags and
// assembles the verdict for a submission. Everything here is a pure function
// of its inputs.
package analysis

import (
	"safeguard/backend/internal/config"
	"safeguard/backend/internal/models"
	"safeguard/backend/internal/patterns"
)

// Classifier maps a MatchSet to flags using the catalogue's topic grades.
type Classifier struct {
	catalogue        *patterns.Catalogue
	keywordThreshold int
}

// NewClassifier creates a classifier with the configured keyword threshold.
func NewClassifier(c *patterns.Catalogue) *Classifier {
	return &Classifier{
		catalogue:        c,
		keywordThreshold: config.SafeguardingKeywordThreshold,
	}
}

// Classify produces one flag per matched pattern, in match order, followed by at
// most one keyword flag.
//
// A pattern filed under several topics takes the most severe topic grade, so
// Critical > High > Medium > Low regardless of topic order. It is a
// SafeguardingConcern when any of its topics is a safeguarding topic.
//
// Keywords only raise a flag once the threshold of distinct keywords is reached.
func (c *Classifier) Classify(set patterns.MatchSet) []models.ModerationFlag {
	flags := make([]models.ModerationFlag, 0, len(set.Patterns)+1)

	for _, m := range set.Patterns {
		flags = append(flags, c.classifyPattern(m))
	}

	if set.KeywordCount() >= c.keywordThreshold {
		keywords := make([]string, len(set.Keywords))
		copy(keywords, set.Keywords)
		flags = append(flags, models.ModerationFlag{
			Kind:     models.KindSafeguardingConcern,
			Keyword:  keywords[0],
			Keywords: keywords,
			Severity: models.SeverityMedium,
		})
	}

	return flags
}

func (c *Classifier) classifyPattern(m patterns.PatternMatch) models.ModerationFlag {
	flag := models.ModerationFlag{
		Kind:     models.KindInappropriateContent,
		Pattern:  m.PatternID,
		Severity: models.SeverityLow,
	}
	for _, name := range m.Topics {
		topic, ok := c.catalogue.Topic(name)
		if !ok {
			continue
		}
		if topic.Level().Rank() > flag.Severity.Rank() {
			flag.Severity = topic.Level()
		}
		if topic.Kind == patterns.TopicSafeguarding {
			flag.Kind = models.KindSafeguardingConcern
		}
	}
	return flag
}
