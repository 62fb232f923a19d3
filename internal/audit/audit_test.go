package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vhfnav/readback/internal/audit"
)

// recorderFunc adapts a function to the audit.Recorder interface.
type recorderFunc struct {
	fn     func(ctx context.Context, d audit.Decision) error
	closed int
}

func (r *recorderFunc) Record(ctx context.Context, d audit.Decision) error { return r.fn(ctx, d) }
func (r *recorderFunc) Close() error                                       { r.closed++; return nil }

func TestOutcomeIsValid(t *testing.T) {
	t.Parallel()

	valid := []audit.Outcome{
		audit.OutcomeDispatched,
		audit.OutcomeNoMatch,
		audit.OutcomeSynthesisFailed,
		audit.OutcomePlaybackFailed,
	}
	for _, o := range valid {
		if !o.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", o)
		}
	}
	if audit.Outcome("exploded").IsValid() {
		t.Error("IsValid(\"exploded\") = true, want false")
	}
	if audit.Outcome("").IsValid() {
		t.Error("IsValid(\"\") = true, want false")
	}
}

func TestLogRecorder_Dispatched(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rec := audit.NewLogRecorder(log)

	err := rec.Record(context.Background(), audit.Decision{
		ID:        "d1",
		SessionID: "s1",
		Fragment:  "you are clear to land now",
		Outcome:   audit.OutcomeDispatched,
		PhraseID:  "landing_clearance",
		Canonical: "Cleared to land runway two seven",
		Variant:   "clear to land",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Record() error = %v, want nil", err)
	}

	out := buf.String()
	for _, want := range []string{"matched", "landing_clearance", "clear to land", "s1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLogRecorder_NoMatchCarriesSuggestion(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rec := audit.NewLogRecorder(log)

	err := rec.Record(context.Background(), audit.Decision{
		SessionID:         "s1",
		Fragment:          "cleered to land",
		Outcome:           audit.OutcomeNoMatch,
		SuggestedPhraseID: "landing_clearance",
		SuggestionScore:   0.93,
	})
	if err != nil {
		t.Fatalf("Record() error = %v, want nil", err)
	}

	out := buf.String()
	if !strings.Contains(out, "no match") {
		t.Errorf("log output missing %q:\n%s", "no match", out)
	}
	if !strings.Contains(out, "suggested_phrase=landing_clearance") {
		t.Errorf("log output missing suggestion attr:\n%s", out)
	}
}

func TestLogRecorder_FailureLogsAtWarn(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	rec := audit.NewLogRecorder(log)

	err := rec.Record(context.Background(), audit.Decision{
		SessionID: "s1",
		Fragment:  "cleared to land",
		Outcome:   audit.OutcomeSynthesisFailed,
		PhraseID:  "landing_clearance",
	})
	if err != nil {
		t.Fatalf("Record() error = %v, want nil", err)
	}

	// Handler is warn-level, so the record only appears if logged at warn
	// or above.
	if !strings.Contains(buf.String(), "readback failed") {
		t.Errorf("failure not logged at warn level:\n%s", buf.String())
	}
}

func TestMultiRecorder_DeliversToAllDespiteError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("db down")
	var first, second int
	failing := &recorderFunc{fn: func(context.Context, audit.Decision) error {
		first++
		return sentinel
	}}
	ok := &recorderFunc{fn: func(context.Context, audit.Decision) error {
		second++
		return nil
	}}

	multi := audit.MultiRecorder{failing, ok}
	err := multi.Record(context.Background(), audit.Decision{Fragment: "go around"})

	if !errors.Is(err, sentinel) {
		t.Errorf("Record() error = %v, want wrapped %v", err, sentinel)
	}
	if first != 1 || second != 1 {
		t.Errorf("recorder calls = (%d, %d), want (1, 1)", first, second)
	}
}

func TestMultiRecorder_CloseClosesAll(t *testing.T) {
	t.Parallel()

	a := &recorderFunc{fn: func(context.Context, audit.Decision) error { return nil }}
	b := &recorderFunc{fn: func(context.Context, audit.Decision) error { return nil }}

	multi := audit.MultiRecorder{a, b}
	if err := multi.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Errorf("close calls = (%d, %d), want (1, 1)", a.closed, b.closed)
	}
}
