package classifier

import "sort"

const (
	// BodyHitWeight is added for every phrase occurrence in the body text
	BodyHitWeight = 5
	// FilenameHitWeight is added once per distinct phrase found in the filename
	FilenameHitWeight = 50
)

// CategoryScore is one ranked entry of a ScoreBoard
type CategoryScore struct {
	Category string `json:"category"`
	Score    int    `json:"score"`
}

// ScoreBoard ranks every category of a rule table for one document
type ScoreBoard struct {
	ranked []CategoryScore
	byName map[string]int
}

// Score turns evidence into a ranked scoreboard covering every category that
// appears in rules. Ties keep the order in which categories were first defined.
func Score(ev Evidence, rules []KeywordRule) ScoreBoard {
	board := ScoreBoard{byName: make(map[string]int)}

	for _, rule := range rules {
		if _, seen := board.byName[rule.Category]; seen {
			continue
		}
		score := ev.KeywordHits[rule.Category]*BodyHitWeight + ev.FilenameHits[rule.Category]*FilenameHitWeight
		board.byName[rule.Category] = score
		board.ranked = append(board.ranked, CategoryScore{Category: rule.Category, Score: score})
	}

	sort.SliceStable(board.ranked, func(i, j int) bool {
		return board.ranked[i].Score > board.ranked[j].Score
	})
	return board
}

// Top returns the highest ranked category
func (b ScoreBoard) Top() (CategoryScore, bool) {
	if len(b.ranked) == 0 {
		return CategoryScore{}, false
	}
	return b.ranked[0], true
}

// Ranked returns all scores, highest first
func (b ScoreBoard) Ranked() []CategoryScore {
	return append([]CategoryScore(nil), b.ranked...)
}

// TopN returns at most n scores above zero
func (b ScoreBoard) TopN(n int) []CategoryScore {
	out := make([]CategoryScore, 0, n)
	for _, s := range b.ranked {
		if len(out) == n || s.Score == 0 {
			break
		}
		out = append(out, s)
	}
	return out
}

// Get returns the score of a category, zero when unknown
func (b ScoreBoard) Get(category string) int {
	return b.byName[category]
}

// Len returns the number of categories on the board
func (b ScoreBoard) Len() int {
	return len(b.ranked)
}
