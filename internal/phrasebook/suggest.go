package phrasebook

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Suggestion is an advisory nearest-vocabulary hit for a fragment the
// matcher rejected.
type Suggestion struct {
	PhraseID string
	Variant  string
	Score    float64
}

const (
	// phoneticThreshold is the minimum Jaro-Winkler similarity accepted
	// when the fragment and variant share a Double Metaphone code, i.e.
	// they already sound alike.
	phoneticThreshold = 0.70

	// fuzzyThreshold is the minimum similarity required on string shape
	// alone.
	fuzzyThreshold = 0.85
)

// Suggester proposes the nearest vocabulary entry for rejected fragments.
// Suggestions feed the decision log so table authors can spot missing
// variants; they never influence dispatch, which stays exact-containment
// only.
//
// Phonetic codes for every variant are precomputed at construction, so a
// Suggester is cheap to query and safe for concurrent use.
type Suggester struct {
	entries []suggestEntry
}

type suggestEntry struct {
	phraseID string
	variant  string
	folded   string
	codes    map[string]struct{}
}

// NewSuggester builds a Suggester over every variant in the table.
func NewSuggester(t *Table) *Suggester {
	s := &Suggester{}
	for i, p := range t.phrases {
		for j, folded := range t.folded[i] {
			s.entries = append(s.entries, suggestEntry{
				phraseID: p.ID,
				variant:  p.Variants[j],
				folded:   folded,
				codes:    codesForTokens(strings.Fields(folded)),
			})
		}
	}
	return s
}

// Suggest returns the closest variant to fragment, or false when nothing
// clears the similarity thresholds. Entries that sound like the fragment
// (shared Double Metaphone code) are accepted at a lower string-shape
// similarity than entries that merely look alike.
func (s *Suggester) Suggest(fragment string) (Suggestion, bool) {
	folded := strings.ToLower(strings.TrimSpace(fragment))
	if folded == "" {
		return Suggestion{}, false
	}
	fragCodes := codesForTokens(strings.Fields(folded))

	var (
		best  Suggestion
		found bool
	)
	for _, e := range s.entries {
		score := matchr.JaroWinkler(folded, e.folded, false)

		threshold := fuzzyThreshold
		if codesOverlap(fragCodes, e.codes) {
			threshold = phoneticThreshold
		}
		if score < threshold {
			continue
		}
		if !found || score > best.Score {
			best = Suggestion{PhraseID: e.phraseID, Variant: e.variant, Score: score}
			found = true
		}
	}
	return best, found
}

// codesForTokens returns the set of Double Metaphone codes across all
// tokens. Both the primary and secondary code of each token are included
// when non-empty.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, tok := range tokens {
		primary, secondary := matchr.DoubleMetaphone(tok)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share any element.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
