package patterns

// PatternMatch records that one catalogue pattern matched a submission.
type PatternMatch struct {
	PatternID string
	Topics    []string
}

// MatchSet is the raw output of a scan: distinct pattern matches and distinct
// keywords, both in catalogue order.
type MatchSet struct {
	Patterns []PatternMatch
	Keywords []string
}

// KeywordCount is the number of distinct keywords found.
func (m MatchSet) KeywordCount() int { return len(m.Keywords) }

// Empty reports whether nothing matched.
func (m MatchSet) Empty() bool { return len(m.Patterns) == 0 && len(m.Keywords) == 0 }

// Matcher scans text against a catalogue. It holds no mutable state.
type Matcher struct {
	catalogue *Catalogue
}

func NewMatcher(c *Catalogue) *Matcher {
	return &Matcher{catalogue: c}
}

// Catalogue returns the catalogue the matcher scans with.
func (m *Matcher) Catalogue() *Catalogue { return m.catalogue }

// Match scans text in a single pass over the catalogue. The catalogue is small,
// so a linear scan per submission is fine.
func (m *Matcher) Match(text string) MatchSet {
	var set MatchSet
	if text == "" {
		return set
	}

	for i := range m.catalogue.Patterns {
		p := &m.catalogue.Patterns[i]
		if p.compiled.MatchString(text) {
			set.Patterns = append(set.Patterns, PatternMatch{
				PatternID: p.ID,
				Topics:    p.Topics,
			})
		}
	}

	for _, kw := range m.catalogue.keywords {
		if kw.compiled.MatchString(text) {
			set.Keywords = append(set.Keywords, kw.term)
		}
	}

	return set
}
