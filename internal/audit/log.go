package audit

import (
	"context"
	"log/slog"
)

// LogRecorder writes every decision to a [slog.Logger]. It is the default
// recorder and the only one most deployments need: matched fragments at
// info, failures at warn, misses at info with the advisory suggestion
// attached when one exists.
type LogRecorder struct {
	log *slog.Logger
}

// NewLogRecorder returns a LogRecorder writing to log, or to
// [slog.Default] when log is nil.
func NewLogRecorder(log *slog.Logger) *LogRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &LogRecorder{log: log}
}

// Record implements [Recorder].
func (r *LogRecorder) Record(ctx context.Context, d Decision) error {
	attrs := []any{
		"session", d.SessionID,
		"fragment", d.Fragment,
	}

	switch d.Outcome {
	case OutcomeNoMatch:
		if d.SuggestedPhraseID != "" {
			attrs = append(attrs, "suggested_phrase", d.SuggestedPhraseID, "suggestion_score", d.SuggestionScore)
		}
		r.log.InfoContext(ctx, "no match", attrs...)
	case OutcomeDispatched:
		attrs = append(attrs,
			"phrase", d.PhraseID,
			"canonical", d.Canonical,
			"variant", d.Variant,
			"match_duration", d.MatchDuration,
			"dispatch_duration", d.DispatchDuration,
		)
		r.log.InfoContext(ctx, "matched", attrs...)
	default:
		attrs = append(attrs, "phrase", d.PhraseID, "canonical", d.Canonical, "outcome", string(d.Outcome))
		r.log.WarnContext(ctx, "readback failed", attrs...)
	}
	return nil
}

// Close implements [Recorder]. It is a no-op for log output.
func (r *LogRecorder) Close() error { return nil }

// Ensure LogRecorder implements Recorder at compile time.
var _ Recorder = (*LogRecorder)(nil)
