package classifier

import (
	"fmt"
	"os"
	"strings"

	"github.com/a3tai/ctd-organizer/internal/taxonomy"
)

// KeywordThreshold is the score the top category must exceed for a keyword match
const KeywordThreshold = 10

// Strategy names the rule that produced a Resolution
type Strategy string

const (
	StrategyExactSection   Strategy = "exact_section"
	StrategyPartialSection Strategy = "partial_section"
	StrategyKeyword        Strategy = "keyword"
	StrategyFilename       Strategy = "filename"
	StrategyFallback       Strategy = "fallback"
)

// AllStrategies lists the strategies in the order the resolver tries them
var AllStrategies = []Strategy{
	StrategyExactSection,
	StrategyPartialSection,
	StrategyKeyword,
	StrategyFilename,
	StrategyFallback,
}

// Resolution is the final destination decision for one document
type Resolution struct {
	// CategoryID is the taxonomy key that matched, or taxonomy.UncategorizedName
	CategoryID string   `json:"category_id"`
	Category   string   `json:"category"`
	FolderPath string   `json:"folder_path"`
	Strategy   Strategy `json:"strategy"`
	Reason     string   `json:"reason"`
}

// IsFallback reports whether no strategy matched
func (r Resolution) IsFallback() bool {
	return r.Strategy == StrategyFallback
}

// FolderChecker answers whether a destination folder exists
type FolderChecker interface {
	Exists(path string) bool
}

// DiskChecker checks folders on the local filesystem
type DiskChecker struct{}

// Exists returns true if path is an existing directory
func (DiskChecker) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Resolver applies the destination strategies in strict order. It holds only
// immutable data and is safe for concurrent use.
type Resolver struct {
	index         *taxonomy.Index
	checker       FolderChecker
	filenameRules []FilenameRule
}

// NewResolver creates a resolver over the taxonomy index
func NewResolver(index *taxonomy.Index, checker FolderChecker, filenameRules []FilenameRule) *Resolver {
	if checker == nil {
		checker = DiskChecker{}
	}
	return &Resolver{
		index:         index,
		checker:       checker,
		filenameRules: filenameRules,
	}
}

// Resolve picks exactly one destination. The first strategy that yields an
// existing folder wins; the Uncategorized fallback always succeeds.
func (r *Resolver) Resolve(ev Evidence, board ScoreBoard, filename string) Resolution {
	sections := ev.Sections()

	if res, ok := r.exactSection(sections); ok {
		return res
	}
	if res, ok := r.partialSection(sections); ok {
		return res
	}
	if res, ok := r.keywordScore(board); ok {
		return res
	}
	if res, ok := r.filenameHeuristic(filename); ok {
		return res
	}

	return Resolution{
		CategoryID: taxonomy.UncategorizedName,
		Category:   taxonomy.UncategorizedName,
		FolderPath: r.index.UncategorizedPath(),
		Strategy:   StrategyFallback,
		Reason:     "No match found",
	}
}

func (r *Resolver) exactSection(sections []string) (Resolution, bool) {
	for _, section := range sections {
		if res, ok := r.resolveKey(section, StrategyExactSection); ok {
			res.Reason = "Exact CTD section match: " + section
			return res, true
		}
	}
	return Resolution{}, false
}

// partialSection accepts any registered key that starts with the section
// string, so "1.3" also matches "1.30".
func (r *Resolver) partialSection(sections []string) (Resolution, bool) {
	keys := r.index.Keys()
	for _, section := range sections {
		for _, key := range keys {
			if !strings.HasPrefix(key, section) {
				continue
			}
			if res, ok := r.resolveKey(key, StrategyPartialSection); ok {
				res.Reason = fmt.Sprintf("Partial CTD section match: %s -> %s", section, key)
				return res, true
			}
		}
	}
	return Resolution{}, false
}

func (r *Resolver) keywordScore(board ScoreBoard) (Resolution, bool) {
	top, ok := board.Top()
	if !ok || top.Score <= KeywordThreshold {
		return Resolution{}, false
	}
	if res, ok := r.firstKeyContaining(top.Category, StrategyKeyword); ok {
		res.Reason = "Keyword match: " + top.Category
		return res, true
	}
	return Resolution{}, false
}

func (r *Resolver) filenameHeuristic(filename string) (Resolution, bool) {
	if filename == "" {
		return Resolution{}, false
	}
	name := strings.ToLower(filename)

	for _, rule := range r.filenameRules {
		if !matchesAny(name, rule.Patterns) {
			continue
		}
		res, ok := r.firstKeyContaining(rule.Target, StrategyFilename)
		if !ok {
			continue
		}
		if rule.Label != "" {
			res.Reason = "Filename suggests " + rule.Label
		} else {
			res.Reason = "Filename match: " + filename
		}
		return res, true
	}
	return Resolution{}, false
}

// firstKeyContaining scans keys in registration order for the first one that
// contains token and whose folder exists.
func (r *Resolver) firstKeyContaining(token string, strategy Strategy) (Resolution, bool) {
	for _, key := range r.index.Keys() {
		if !strings.Contains(key, token) {
			continue
		}
		if res, ok := r.resolveKey(key, strategy); ok {
			return res, true
		}
	}
	return Resolution{}, false
}

func (r *Resolver) resolveKey(key string, strategy Strategy) (Resolution, bool) {
	entry, ok := r.index.Entry(key)
	if !ok || !r.checker.Exists(entry.FolderPath) {
		return Resolution{}, false
	}
	return Resolution{
		CategoryID: key,
		Category:   entry.Name,
		FolderPath: entry.FolderPath,
		Strategy:   strategy,
	}, true
}

func matchesAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
