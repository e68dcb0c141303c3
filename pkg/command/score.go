package command

import "strings"

// Match scores returned by Score, highest precedence first.
const (
	ScoreExact           = 1.0
	ScoreInputContains   = 0.9
	ScorePatternContains = 0.7
	overlapWeight        = 0.8
	overlapMinRatio      = 0.5
)

// Score rates how well normalized input matches a normalized pattern.
//
// Rules are tried in order and the first one that applies wins:
//
//	input == pattern                     1.0
//	input contains pattern               0.9
//	pattern contains input               0.7
//	word overlap ratio r >= 0.5          r * 0.8
//	otherwise                            0.0
//
// The overlap ratio is the share of pattern words found anywhere in input.
// Empty input never matches.
func Score(input, pattern string) float64 {
	if input == "" || pattern == "" {
		return 0
	}
	switch {
	case input == pattern:
		return ScoreExact
	case strings.Contains(input, pattern):
		return ScoreInputContains
	case strings.Contains(pattern, input):
		return ScorePatternContains
	}

	patternWords := strings.Fields(pattern)
	if len(patternWords) == 0 {
		return 0
	}
	inputWords := make(map[string]struct{})
	for _, w := range strings.Fields(input) {
		inputWords[w] = struct{}{}
	}

	matching := 0
	for _, w := range patternWords {
		if _, ok := inputWords[w]; ok {
			matching++
		}
	}

	ratio := float64(matching) / float64(len(patternWords))
	if ratio < overlapMinRatio {
		return 0
	}
	return ratio * overlapWeight
}
