package command

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

// Suggestion is a registered phrase close to some input.
type Suggestion struct {
	Variant  Variant `json:"command"`
	Phrase   string  `json:"phrase"`
	Distance int     `json:"distance"`
}

// Suggest returns up to n registered phrases ordered by edit distance to raw.
// Ties keep registry order. It returns nil for empty input or n <= 0.
func (r *Registry) Suggest(raw string, n int) []Suggestion {
	text := Normalize(raw)
	if text == "" || n <= 0 {
		return nil
	}

	var all []Suggestion
	r.each(func(v Variant, phrase string) {
		all = append(all, Suggestion{
			Variant:  v,
			Phrase:   phrase,
			Distance: levenshtein.ComputeDistance(text, phrase),
		})
	})
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Distance < all[j].Distance
	})

	if len(all) > n {
		all = all[:n]
	}
	return all
}
