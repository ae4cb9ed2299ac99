// Package patterns holds the safeguarding risk catalogue and the matcher that
// scans submitted text against it.
package patterns

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"safeguard/backend/internal/models"
)

// DefaultCatalogue is the catalogue compiled into the binary.
//
//go:embed catalogue.yaml
var DefaultCatalogue []byte

// TopicKind says whether a topic is a safeguarding concern about the author
// or inappropriate content in general.
type TopicKind string

const (
	TopicSafeguarding  TopicKind = "safeguarding"
	TopicInappropriate TopicKind = "inappropriate"
)

func (k *TopicKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	kind := TopicKind(strings.ToLower(s))
	switch kind {
	case TopicSafeguarding, TopicInappropriate:
		*k = kind
		return nil
	default:
		return fmt.Errorf("invalid value for topic kind: %q", s)
	}
}

// severityValue decodes lowercase severities from YAML into models.Severity.
type severityValue models.Severity

func (s *severityValue) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	sev := models.Severity(strings.ToUpper(raw))
	if !sev.Valid() {
		return fmt.Errorf("invalid value for severity: %q", raw)
	}
	*s = severityValue(sev)
	return nil
}

type Topic struct {
	Name     string        `yaml:"name"`
	Kind     TopicKind     `yaml:"kind"`
	Severity severityValue `yaml:"severity"`
}

// Level returns the topic severity as a models.Severity.
func (t Topic) Level() models.Severity { return models.Severity(t.Severity) }

// Exceptions lists the trusted caller contexts in which a pattern is curriculum material.
type Exceptions struct {
	Subjects []string `yaml:"subjects"`
	Contexts []string `yaml:"contexts"`
}

// Match returns the catalogue entry that the caller's context label or subject
// metadata matched. Comparison is case-insensitive, and the context label is also
// checked against subjects so callers that pass the subject as their context are
// honoured.
func (e *Exceptions) Match(context, subject string) (string, bool) {
	if e == nil {
		return "", false
	}
	context = strings.TrimSpace(context)
	subject = strings.TrimSpace(subject)
	for _, s := range e.Subjects {
		if subject != "" && strings.EqualFold(s, subject) {
			return s, true
		}
		if context != "" && strings.EqualFold(s, context) {
			return s, true
		}
	}
	for _, c := range e.Contexts {
		if context != "" && strings.EqualFold(c, context) {
			return c, true
		}
	}
	return "", false
}

type Pattern struct {
	ID          string      `yaml:"id"`
	Description string      `yaml:"description"`
	Regex       string      `yaml:"regex"`
	Topics      []string    `yaml:"topics"`
	Exceptions  *Exceptions `yaml:"exceptions"`

	compiled *regexp.Regexp
}

type keyword struct {
	term     string
	compiled *regexp.Regexp
}

// Catalogue is the immutable, compiled set of risk patterns and keywords.
// It is safe for concurrent use once loaded.
type Catalogue struct {
	Version  string    `yaml:"version"`
	Topics   []Topic   `yaml:"topics"`
	Patterns []Pattern `yaml:"patterns"`
	Keywords []string  `yaml:"keywords"`

	topicIndex   map[string]Topic
	patternIndex map[string]int
	keywords     []keyword
}

// Load parses and compiles a catalogue from YAML.
func Load(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the catalogue: %w", err)
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadDefault compiles the embedded catalogue.
func LoadDefault() (*Catalogue, error) {
	return Load(DefaultCatalogue)
}

// LoadFile compiles the catalogue at path, or the embedded one when path is empty.
func LoadFile(path string) (*Catalogue, error) {
	if path == "" {
		return LoadDefault()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue %s: %w", path, err)
	}
	return Load(data)
}

func (c *Catalogue) compile() error {
	if c.Version == "" {
		return fmt.Errorf("catalogue has no version")
	}

	c.topicIndex = make(map[string]Topic, len(c.Topics))
	for _, t := range c.Topics {
		if t.Name == "" {
			return fmt.Errorf("catalogue topic without a name")
		}
		if _, dup := c.topicIndex[t.Name]; dup {
			return fmt.Errorf("duplicate topic %q", t.Name)
		}
		c.topicIndex[t.Name] = t
	}

	c.patternIndex = make(map[string]int, len(c.Patterns))
	for i := range c.Patterns {
		p := &c.Patterns[i]
		if p.ID == "" {
			return fmt.Errorf("pattern %d has no id", i)
		}
		if _, dup := c.patternIndex[p.ID]; dup {
			return fmt.Errorf("duplicate pattern id %q", p.ID)
		}
		if len(p.Topics) == 0 {
			return fmt.Errorf("pattern %s has no topics", p.ID)
		}
		for _, name := range p.Topics {
			if _, ok := c.topicIndex[name]; !ok {
				return fmt.Errorf("pattern %s references unknown topic %q", p.ID, name)
			}
		}
		re, err := regexp.Compile("(?i)" + p.Regex)
		if err != nil {
			return fmt.Errorf("failed to compile the regex for %s: %w", p.ID, err)
		}
		p.compiled = re
		c.patternIndex[p.ID] = i
	}

	seen := make(map[string]bool, len(c.Keywords))
	c.keywords = make([]keyword, 0, len(c.Keywords))
	for _, term := range c.Keywords {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		words := strings.Fields(term)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		re, err := regexp.Compile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
		if err != nil {
			return fmt.Errorf("failed to compile keyword %q: %w", term, err)
		}
		c.keywords = append(c.keywords, keyword{term: term, compiled: re})
	}

	return nil
}

// Topic looks up a topic by name.
func (c *Catalogue) Topic(name string) (Topic, bool) {
	t, ok := c.topicIndex[name]
	return t, ok
}

// Pattern looks up a pattern by id.
func (c *Catalogue) Pattern(id string) (*Pattern, bool) {
	i, ok := c.patternIndex[id]
	if !ok {
		return nil, false
	}
	return &c.Patterns[i], true
}
