package phrasebook

import "strings"

// Match is a successful vocabulary hit.
type Match struct {
	// PhraseID identifies the winning phrase for decision records.
	PhraseID string

	// Canonical is the text to hand to the synthesizer.
	Canonical string

	// Variant is the variant that produced the hit, as written in the
	// table. Diagnostic only.
	Variant string
}

// Match scans the table for the first phrase with a variant matching
// fragment and returns it. The second return is false when nothing in the
// vocabulary matches.
//
// The fragment is compared after trimming surrounding whitespace and case
// folding; no other normalisation is applied. A variant matches when the
// folded variant contains the folded fragment or vice versa, which keeps
// partial recognizer output usable in both directions: a clipped fragment
// still finds its phrase, and a fragment with extra words around a variant
// still matches it.
//
// The scan honours table order and, within a phrase, variant order; the
// first hit wins. Overlapping vocabularies stay deterministic because
// precedence is exactly the order the author wrote.
//
// An empty or whitespace-only fragment never matches. The empty string is
// a substring of everything, so without this guard a recognizer hiccup
// would select whatever phrase happens to be first.
//
// Match performs no I/O and reads only immutable state; it is safe for
// concurrent use and deterministic for identical inputs.
func (t *Table) Match(fragment string) (Match, bool) {
	text := strings.ToLower(strings.TrimSpace(fragment))
	if text == "" {
		return Match{}, false
	}

	for i := range t.phrases {
		for j, variant := range t.folded[i] {
			if strings.Contains(text, variant) || strings.Contains(variant, text) {
				return Match{
					PhraseID:  t.phrases[i].ID,
					Canonical: t.phrases[i].Canonical,
					Variant:   t.phrases[i].Variants[j],
				}, true
			}
		}
	}
	return Match{}, false
}
