package engine

import (
	"regexp"
	"strconv"
)

var scoreRe = regexp.MustCompile(`(?i)(?:总分|score)[:：]?\s*(\d+)`)

// ParseScore extracts the numeric review score from engine output.
// The last labeled number in the text wins, clamped to [0, 100].
// Text without a parsable score yields 0.
func ParseScore(text string) int {
	matches := scoreRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0
	}

	score, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
