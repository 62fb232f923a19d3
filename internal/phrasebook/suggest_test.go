package phrasebook_test

import (
	"testing"

	"github.com/vhfnav/readback/internal/phrasebook"
)

func suggestTable(t *testing.T) *phrasebook.Table {
	t.Helper()
	table, err := phrasebook.New([]phrasebook.Phrase{
		{ID: "landing_clearance", Canonical: "Cleared to land runway two seven", Variants: []string{"cleared to land"}},
		{ID: "hold_short", Canonical: "Hold short of runway two seven", Variants: []string{"hold short"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return table
}

func TestSuggest_CloseMisspelling(t *testing.T) {
	t.Parallel()
	s := phrasebook.NewSuggester(suggestTable(t))

	// Rejected by the exact matcher, close enough for an advisory hint.
	sug, ok := s.Suggest("cleared to lend")
	if !ok {
		t.Fatal("expected a suggestion for a near-miss fragment")
	}
	if sug.PhraseID != "landing_clearance" {
		t.Errorf("phrase: got %q, want landing_clearance", sug.PhraseID)
	}
	if sug.Score <= 0 || sug.Score > 1 {
		t.Errorf("score out of range: %v", sug.Score)
	}
}

func TestSuggest_DistantFragment(t *testing.T) {
	t.Parallel()
	s := phrasebook.NewSuggester(suggestTable(t))

	if sug, ok := s.Suggest("say again"); ok {
		t.Errorf("expected no suggestion for unrelated fragment, got %+v", sug)
	}
}

func TestSuggest_EmptyFragment(t *testing.T) {
	t.Parallel()
	s := phrasebook.NewSuggester(suggestTable(t))

	if _, ok := s.Suggest("   "); ok {
		t.Error("whitespace fragment should produce no suggestion")
	}
}

func TestSuggest_DoesNotAffectMatching(t *testing.T) {
	t.Parallel()
	table := suggestTable(t)
	_ = phrasebook.NewSuggester(table)

	// Building a suggester must leave exact matching untouched: the
	// near-miss still fails the matcher even though it gets a suggestion.
	if m, ok := table.Match("cleared to lend"); ok {
		t.Errorf("matcher accepted a misspelling: %+v", m)
	}
	if _, ok := table.Match("cleared to land"); !ok {
		t.Error("exact variant should still match")
	}
}

func TestSuggest_Deterministic(t *testing.T) {
	t.Parallel()
	s := phrasebook.NewSuggester(suggestTable(t))

	first, firstOK := s.Suggest("hold schort")
	for i := 0; i < 20; i++ {
		sug, ok := s.Suggest("hold schort")
		if ok != firstOK || sug != first {
			t.Fatalf("call %d diverged: got (%+v,%v), want (%+v,%v)", i, sug, ok, first, firstOK)
		}
	}
}
