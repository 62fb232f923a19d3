package phrasebook_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vhfnav/readback/internal/phrasebook"
)

func TestLoadYAML_Valid(t *testing.T) {
	t.Parallel()
	doc := `
phrases:
  - id: landing_clearance
    canonical: "Cleared to land runway two seven"
    variants:
      - cleared to land
      - clear to land
  - id: hold_short
    canonical: "Hold short of runway two seven"
    variants:
      - hold short
`
	table, err := phrasebook.LoadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", table.Len())
	}
	if table.VariantCount() != 3 {
		t.Errorf("VariantCount: got %d, want 3", table.VariantCount())
	}

	phrases := table.Phrases()
	if phrases[0].ID != "landing_clearance" || phrases[1].ID != "hold_short" {
		t.Errorf("order not preserved: %q then %q", phrases[0].ID, phrases[1].ID)
	}
}

func TestLoadYAML_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	doc := `
phrases:
  - id: x
    canonical: "X"
    varaints: ["x ray"]
`
	if _, err := phrasebook.LoadYAML(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
}

func TestLoadYAML_EmptyVariantsList(t *testing.T) {
	t.Parallel()
	doc := `
phrases:
  - id: x
    canonical: "X"
    variants: []
`
	_, err := phrasebook.LoadYAML(strings.NewReader(doc))
	if !errors.Is(err, phrasebook.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), "variants list is empty") {
		t.Errorf("error should name the empty variants list, got: %v", err)
	}
}

func TestLoadYAML_EmptyCanonical(t *testing.T) {
	t.Parallel()
	doc := `
phrases:
  - id: x
    canonical: "   "
    variants: ["x ray"]
`
	_, err := phrasebook.LoadYAML(strings.NewReader(doc))
	if !errors.Is(err, phrasebook.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), "canonical text is empty") {
		t.Errorf("error should name the empty canonical text, got: %v", err)
	}
}

func TestNew_EmptyVariantString(t *testing.T) {
	t.Parallel()
	_, err := phrasebook.New([]phrasebook.Phrase{
		{ID: "x", Canonical: "X", Variants: []string{"x ray", "  "}},
	})
	if !errors.Is(err, phrasebook.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestNew_DuplicateID(t *testing.T) {
	t.Parallel()
	_, err := phrasebook.New([]phrasebook.Phrase{
		{ID: "x", Canonical: "X", Variants: []string{"x ray"}},
		{ID: "x", Canonical: "Y", Variants: []string{"yankee"}},
	})
	if !errors.Is(err, phrasebook.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), "already used") {
		t.Errorf("error should mention the duplicate id, got: %v", err)
	}
}

func TestNew_EmptyTable(t *testing.T) {
	t.Parallel()
	_, err := phrasebook.New(nil)
	if !errors.Is(err, phrasebook.ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestNew_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	_, err := phrasebook.New([]phrasebook.Phrase{
		{ID: "a", Canonical: "", Variants: []string{"alpha"}},
		{ID: "b", Canonical: "B", Variants: nil},
	})
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	msg := err.Error()
	if !strings.Contains(msg, "canonical text is empty") || !strings.Contains(msg, "variants list is empty") {
		t.Errorf("both problems should be reported together, got: %v", err)
	}
}

func TestNew_DerivesMissingIDs(t *testing.T) {
	t.Parallel()
	table, err := phrasebook.New([]phrasebook.Phrase{
		{Canonical: "Cleared to land runway two seven", Variants: []string{"cleared to land"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := table.Phrases()[0].ID
	if got != "cleared_to_land_runway_two_seven" {
		t.Errorf("derived id: got %q", got)
	}
}

func TestLoadJSON_LegacyMappingsShape(t *testing.T) {
	t.Parallel()
	// The original export carried a top-level mappings array without ids.
	doc := `{
  "mappings": [
    {"canonical": "Cleared to land runway two seven", "variants": ["cleared to land", "clear to land"]},
    {"canonical": "Go around", "variants": ["go around"]}
  ]
}`
	table, err := phrasebook.LoadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", table.Len())
	}
	if id := table.Phrases()[1].ID; id != "go_around" {
		t.Errorf("derived id: got %q, want go_around", id)
	}
}

func TestLoadJSON_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	doc := `{"phrases": [{"id": "x", "canonical": "X", "variants": ["x ray"], "weight": 3}]}`
	if _, err := phrasebook.LoadJSON(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_BothKeysRejected(t *testing.T) {
	t.Parallel()
	doc := `{
  "phrases": [{"id": "x", "canonical": "X", "variants": ["x ray"]}],
  "mappings": [{"id": "y", "canonical": "Y", "variants": ["yankee"]}]
}`
	if _, err := phrasebook.LoadJSON(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error when both phrases and mappings are set")
	}
}

func TestLoad_PicksFormatByExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "book.yaml")
	if err := os.WriteFile(yamlPath, []byte("phrases:\n  - id: x\n    canonical: \"X\"\n    variants: [\"x ray\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "book.json")
	if err := os.WriteFile(jsonPath, []byte(`{"mappings": [{"canonical": "X", "variants": ["x ray"]}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := phrasebook.Load(yamlPath); err != nil {
		t.Errorf("Load yaml: %v", err)
	}
	if _, err := phrasebook.Load(jsonPath); err != nil {
		t.Errorf("Load json: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := phrasebook.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("error should mention the failed open, got: %v", err)
	}
}

func TestShortVariants(t *testing.T) {
	t.Parallel()
	table, err := phrasebook.New([]phrasebook.Phrase{
		{ID: "affirm", Canonical: "Affirm", Variants: []string{"affirm", "yes"}},
		{ID: "landing", Canonical: "Cleared to land", Variants: []string{"cleared to land"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	short := table.ShortVariants()
	if len(short) != 1 {
		t.Fatalf("got %d flagged variants, want 1: %+v", len(short), short)
	}
	if short[0].PhraseID != "affirm" || short[0].Variant != "yes" {
		t.Errorf("flagged wrong variant: %+v", short[0])
	}

	// The flag is advisory: the short variant still matches normally.
	if _, ok := table.Match("yes"); !ok {
		t.Error("short variant should still match")
	}
}
