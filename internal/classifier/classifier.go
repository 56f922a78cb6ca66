package classifier

import (
	"fmt"

	"github.com/a3tai/ctd-organizer/internal/taxonomy"
)

// Config controls the tables and folder checks used by a Classifier
type Config struct {
	Rules         []KeywordRule
	FilenameRules []FilenameRule
	Checker       FolderChecker
}

// DefaultConfig returns the built-in tables checked against the local disk
func DefaultConfig() Config {
	return Config{
		Rules:         DefaultRules(),
		FilenameRules: DefaultFilenameRules(),
		Checker:       DiskChecker{},
	}
}

// Decision is the full outcome of classifying one document
type Decision struct {
	Evidence   Evidence
	Scores     ScoreBoard
	Resolution Resolution
}

// Classifier runs evidence collection, scoring and resolution for one
// document at a time. It is immutable and safe to share between goroutines.
type Classifier struct {
	rules    []KeywordRule
	resolver *Resolver
}

// New creates a classifier over the taxonomy index
func New(index *taxonomy.Index, cfg Config) (*Classifier, error) {
	if index == nil {
		return nil, fmt.Errorf("taxonomy index cannot be nil")
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = DefaultRules()
	}
	if cfg.FilenameRules == nil {
		cfg.FilenameRules = DefaultFilenameRules()
	}

	rules := make([]KeywordRule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		rules[i] = KeywordRule{Category: r.Category, Phrases: normalizePhrases(r.Phrases)}
	}
	filenameRules := make([]FilenameRule, len(cfg.FilenameRules))
	for i, r := range cfg.FilenameRules {
		filenameRules[i] = FilenameRule{Patterns: normalizePhrases(r.Patterns), Target: r.Target, Label: r.Label}
	}

	return &Classifier{
		rules:    rules,
		resolver: NewResolver(index, cfg.Checker, filenameRules),
	}, nil
}

// Classify decides the destination for a document from its extracted text
// and filename. Identical inputs always produce identical decisions.
func (c *Classifier) Classify(text, filename string) Decision {
	ev := Collect(text, filename, c.rules)
	board := Score(ev, c.rules)
	return Decision{
		Evidence:   ev,
		Scores:     board,
		Resolution: c.resolver.Resolve(ev, board, filename),
	}
}

// Rules returns the keyword table in use
func (c *Classifier) Rules() []KeywordRule {
	return append([]KeywordRule(nil), c.rules...)
}
