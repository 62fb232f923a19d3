// Package phrasebook holds the controlled vocabulary of canonical ATC
// phrases and the matcher that snaps recognizer output onto it.
//
// A [Table] is loaded once at startup and never mutated, so any number of
// readers may call [Table.Match] concurrently without synchronisation.
// Table order is precedence order: when a fragment could match several
// phrases, the earliest phrase (and within it, the earliest variant) wins.
// Authors therefore order entries from most specific to least.
package phrasebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// shortVariantRunes is the length below which a variant is flagged as a
// tuning risk: the containment rule makes very short variants match almost
// any fragment.
const shortVariantRunes = 4

// ErrInvalid wraps every table validation failure so callers can
// distinguish a bad vocabulary from an unreadable source.
var ErrInvalid = errors.New("phrasebook: invalid table")

// Phrase is one entry of the controlled vocabulary.
type Phrase struct {
	// ID uniquely identifies the phrase in decision records. Optional in
	// source documents; when empty it is derived from the canonical text.
	ID string `yaml:"id" json:"id"`

	// Canonical is the exact text spoken when this phrase is selected.
	Canonical string `yaml:"canonical" json:"canonical"`

	// Variants are the alternate phrasings accepted for this phrase, in
	// priority order. Matching is case-insensitive.
	Variants []string `yaml:"variants" json:"variants"`
}

// ShortVariant flags a variant so short that the containment rule makes it
// a near-universal matcher. Reported at load time so table authors can
// tighten the entry; matching behaviour is unchanged.
type ShortVariant struct {
	PhraseID string
	Variant  string
}

// Table is the ordered, immutable phrase vocabulary.
type Table struct {
	phrases []Phrase
	folded  [][]string // lower-cased variants, same shape as phrases
	short   []ShortVariant
}

// New validates phrases and builds a ready-to-match table. All problems
// are collected and returned together, wrapped in [ErrInvalid]; no partial
// table is ever produced. Entries without an id get one derived from their
// canonical text, and ids must be unique after derivation.
func New(phrases []Phrase) (*Table, error) {
	var errs []error
	if len(phrases) == 0 {
		errs = append(errs, errors.New("table has no phrases"))
	}

	entries := make([]Phrase, len(phrases))
	copy(entries, phrases)

	seen := make(map[string]int, len(entries))
	for i := range entries {
		p := &entries[i]
		if strings.TrimSpace(p.Canonical) == "" {
			errs = append(errs, fmt.Errorf("phrase %d: canonical text is empty", i))
		}
		if p.ID == "" {
			p.ID = deriveID(p.Canonical)
		}
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("phrase %d: no id and none derivable from canonical text %q", i, p.Canonical))
		} else if prev, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Errorf("phrase %d: id %q already used by phrase %d", i, p.ID, prev))
		} else {
			seen[p.ID] = i
		}

		if len(p.Variants) == 0 {
			errs = append(errs, fmt.Errorf("phrase %d (%s): variants list is empty", i, p.ID))
			continue
		}
		for j, v := range p.Variants {
			if strings.TrimSpace(v) == "" {
				errs = append(errs, fmt.Errorf("phrase %d (%s): variant %d is empty", i, p.ID, j))
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	t := &Table{
		phrases: entries,
		folded:  make([][]string, len(entries)),
	}
	for i, p := range entries {
		t.folded[i] = make([]string, len(p.Variants))
		for j, v := range p.Variants {
			t.folded[i][j] = strings.ToLower(v)
			if utf8.RuneCountInString(v) < shortVariantRunes {
				t.short = append(t.short, ShortVariant{PhraseID: p.ID, Variant: v})
			}
		}
	}
	return t, nil
}

// Load reads a phrase table from path, choosing the format by extension:
// .json uses the legacy JSON mapping shape, everything else the YAML
// document. Very short variants are logged as tuning warnings.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("phrasebook: open %q: %w", path, err)
	}
	defer f.Close()

	var t *Table
	if strings.EqualFold(filepath.Ext(path), ".json") {
		t, err = LoadJSON(f)
	} else {
		t, err = LoadYAML(f)
	}
	if err != nil {
		return nil, err
	}

	for _, sv := range t.ShortVariants() {
		slog.Warn("phrasebook: very short variant matches almost any fragment",
			"phrase", sv.PhraseID, "variant", sv.Variant)
	}
	return t, nil
}

// document is the on-disk shape shared by both formats. The YAML house
// format uses the phrases key; the legacy JSON export used mappings.
// Exactly one of the two must be present.
type document struct {
	Phrases  []Phrase `yaml:"phrases" json:"phrases"`
	Mappings []Phrase `yaml:"mappings" json:"mappings"`
}

func (d document) entries() ([]Phrase, error) {
	switch {
	case len(d.Phrases) > 0 && len(d.Mappings) > 0:
		return nil, errors.New("phrasebook: document sets both phrases and mappings")
	case len(d.Phrases) > 0:
		return d.Phrases, nil
	case len(d.Mappings) > 0:
		return d.Mappings, nil
	default:
		return nil, errors.New("phrasebook: document has no phrases")
	}
}

// LoadYAML parses a YAML phrase document from r. Unknown fields are
// rejected so typos fail loudly instead of silently dropping entries.
func LoadYAML(r io.Reader) (*Table, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("phrasebook: parse yaml: %w", err)
	}
	entries, err := doc.entries()
	if err != nil {
		return nil, err
	}
	return New(entries)
}

// LoadJSON parses a JSON phrase document from r. Unknown fields are
// rejected, matching the strictness of the YAML path.
func LoadJSON(r io.Reader) (*Table, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("phrasebook: parse json: %w", err)
	}
	entries, err := doc.entries()
	if err != nil {
		return nil, err
	}
	return New(entries)
}

// Len returns the number of phrases in the table.
func (t *Table) Len() int { return len(t.phrases) }

// VariantCount returns the total number of variants across all phrases.
func (t *Table) VariantCount() int {
	n := 0
	for _, p := range t.phrases {
		n += len(p.Variants)
	}
	return n
}

// Phrases returns a copy of the phrase list in table order. The inner
// variant slices are shared and must not be modified.
func (t *Table) Phrases() []Phrase {
	out := make([]Phrase, len(t.phrases))
	copy(out, t.phrases)
	return out
}

// ShortVariants returns the variants flagged as tuning risks, in table
// order. Empty for a table with no risky entries.
func (t *Table) ShortVariants() []ShortVariant {
	out := make([]ShortVariant, len(t.short))
	copy(out, t.short)
	return out
}

// deriveID builds a stable identifier from canonical text for entries that
// carry no explicit id (the legacy JSON export had none): letters and
// digits are kept lower-cased, every other run collapses to a single
// underscore.
func deriveID(canonical string) string {
	var b strings.Builder
	b.Grow(len(canonical))
	lastUnderscore := true // swallow leading separators
	for _, r := range strings.ToLower(canonical) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
