// Package audit records readback decisions: one [Decision] per recognized
// fragment, whether it matched or not.
//
// The session loop emits decisions through a [Recorder]. The package ships
// a structured-log recorder for every deployment and a PostgreSQL recorder
// for installations that want to query decision history when tuning the
// phrasebook. [MultiRecorder] fans out to several recorders at once.
//
// Recording is diagnostic: a failing recorder never stops the session loop.
package audit

import (
	"context"
	"errors"
	"time"
)

// Outcome classifies how the pipeline handled one fragment.
type Outcome string

const (
	// OutcomeDispatched means the fragment matched and its canonical
	// phrase was synthesized and played.
	OutcomeDispatched Outcome = "dispatched"

	// OutcomeNoMatch means no phrasebook variant satisfied containment.
	OutcomeNoMatch Outcome = "no_match"

	// OutcomeSynthesisFailed means the fragment matched but the
	// synthesizer returned an error.
	OutcomeSynthesisFailed Outcome = "synthesis_failed"

	// OutcomePlaybackFailed means synthesis succeeded but the output sink
	// rejected the clip.
	OutcomePlaybackFailed Outcome = "playback_failed"
)

// IsValid reports whether o is one of the defined outcomes.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeDispatched, OutcomeNoMatch, OutcomeSynthesisFailed, OutcomePlaybackFailed:
		return true
	}
	return false
}

// Decision is the audit record for one fragment.
type Decision struct {
	// ID uniquely identifies this decision (UUID).
	ID string

	// SessionID identifies the session loop that produced the decision.
	SessionID string

	// Fragment is the raw recognizer hypothesis, untrimmed.
	Fragment string

	// Confidence is the recognizer's score for the fragment, 0 when
	// unreported.
	Confidence float64

	// Outcome classifies the result.
	Outcome Outcome

	// PhraseID, Canonical and Variant describe the winning phrase. All
	// three are empty when Outcome is OutcomeNoMatch.
	PhraseID  string
	Canonical string
	Variant   string

	// SuggestedPhraseID and SuggestionScore carry the advisory
	// nearest-phrase suggestion computed on OutcomeNoMatch, for offline
	// phrasebook tuning. Both are zero when no suggestion cleared the
	// threshold or the suggester is disabled.
	SuggestedPhraseID string
	SuggestionScore   float64

	// MatchDuration is the time spent in the matcher.
	MatchDuration time.Duration

	// DispatchDuration is the time spent synthesizing and playing, zero
	// for OutcomeNoMatch.
	DispatchDuration time.Duration

	// CreatedAt is when the decision was made.
	CreatedAt time.Time
}

// Recorder persists decisions.
//
// Implementations must be safe for concurrent use.
type Recorder interface {
	// Record persists one decision.
	Record(ctx context.Context, d Decision) error

	// Close releases any resources held by the recorder.
	Close() error
}

// MultiRecorder fans every decision out to all wrapped recorders.
// An error from one recorder does not stop delivery to the others.
type MultiRecorder []Recorder

// Record delivers d to every recorder and joins their errors.
func (m MultiRecorder) Record(ctx context.Context, d Decision) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every recorder and joins their errors.
func (m MultiRecorder) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure MultiRecorder implements Recorder at compile time.
var _ Recorder = (MultiRecorder)(nil)
