package classifier

import (
	"regexp"
	"sort"
	"strings"
)

// Section-number pattern families, strongest first. Each family is applied
// independently and the matches are unioned.
var sectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:ctd|module)\s*(?:section)?\s*:?\s*([0-9]+(?:\.[0-9]+)+)\b`),
	regexp.MustCompile(`\bsection\s*([0-9]+(?:\.[0-9]+)+)\b`),
	regexp.MustCompile(`\b([0-9]+\.[0-9]+(?:\.[0-9]+)*)\b`),
}

// Evidence holds the signals gathered from one document
type Evidence struct {
	KeywordHits  map[string]int
	FilenameHits map[string]int

	// section -> index of the strongest pattern family that produced it
	sections map[string]int
}

// Collect scans the lowercased body text and filename for keyword phrases and
// extracts explicit section numbers from the body.
func Collect(text, filename string, rules []KeywordRule) Evidence {
	ev := Evidence{
		KeywordHits:  make(map[string]int),
		FilenameHits: make(map[string]int),
		sections:     make(map[string]int),
	}

	body := strings.ToLower(text)
	name := strings.ToLower(filename)

	for _, rule := range rules {
		for _, phrase := range rule.Phrases {
			phrase = strings.ToLower(phrase)
			if phrase == "" {
				continue
			}
			if body != "" {
				if n := strings.Count(body, phrase); n > 0 {
					ev.KeywordHits[rule.Category] += n
				}
			}
			if name != "" && strings.Contains(name, phrase) {
				ev.FilenameHits[rule.Category]++
			}
		}
	}

	for family, pattern := range sectionPatterns {
		for _, m := range pattern.FindAllStringSubmatch(body, -1) {
			section := strings.TrimSpace(m[1])
			if !strings.Contains(section, ".") {
				continue
			}
			if prev, seen := ev.sections[section]; !seen || family < prev {
				ev.sections[section] = family
			}
		}
	}

	return ev
}

// Sections returns the extracted section numbers in canonical order: those
// found by a stronger pattern family first, then lexicographically.
func (e Evidence) Sections() []string {
	out := make([]string, 0, len(e.sections))
	for s := range e.sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		fi, fj := e.sections[out[i]], e.sections[out[j]]
		if fi != fj {
			return fi < fj
		}
		return out[i] < out[j]
	})
	return out
}

// HasSection reports whether the section number was extracted
func (e Evidence) HasSection(section string) bool {
	_, ok := e.sections[section]
	return ok
}

// Empty reports whether no signal at all was found
func (e Evidence) Empty() bool {
	return len(e.KeywordHits) == 0 && len(e.FilenameHits) == 0 && len(e.sections) == 0
}
