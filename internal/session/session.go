// Package session runs the readback loop: fragments from one recognition
// stream are matched against the phrasebook and each hit is re-voiced
// through the dispatcher, strictly one fragment at a time in arrival order.
//
// A [Loop] owns exactly one [recognize.Session]. The loop is the only
// goroutine touching the stream's fragment channel, which is what makes the
// ordering guarantee hold without further synchronisation. Synthesis and
// playback failures are confined to the fragment that caused them; only a
// broken recognizer stream or cancellation stops the loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/vhfnav/readback/internal/audit"
	"github.com/vhfnav/readback/internal/observe"
	"github.com/vhfnav/readback/internal/phrasebook"
	"github.com/vhfnav/readback/pkg/recognize"
)

// ErrRecognizerStream marks a recognizer stream that terminated with an
// error. A Run returning this error means the session died, as opposed to
// ending cleanly or being cancelled.
var ErrRecognizerStream = errors.New("session: recognizer stream failed")

// State is the loop's position in its lifecycle. States exist for
// diagnostics; transitions are driven solely by [Loop.Run].
type State int

const (
	// StateIdle is the state between construction and Run.
	StateIdle State = iota
	// StateListening means the loop is blocked waiting for a fragment.
	StateListening
	// StateMatching means the loop is inside the phrasebook matcher.
	StateMatching
	// StateDispatching means the loop is synthesizing or playing a match.
	StateDispatching
	// StateStopped is terminal, entered on every Run exit path.
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateMatching:
		return "matching"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config holds all dependencies needed to create a [Loop].
//
// Required fields are Stream, Table, and Dispatcher. The rest default
// sensibly: a generated session ID, the default logger and metrics, a
// log-only audit recorder, and no suggester.
type Config struct {
	// Stream is the live recognition stream. The Loop takes ownership and
	// closes it when Run exits. Must not be nil.
	Stream recognize.Session

	// Table is the loaded phrasebook, shared read-only. Must not be nil.
	Table *phrasebook.Table

	// Dispatcher re-voices matched phrases. Must not be nil.
	Dispatcher *Dispatcher

	// Suggester, when non-nil, computes an advisory nearest-phrase
	// suggestion for fragments that miss. Suggestions only annotate the
	// audit record; they never change the match decision.
	Suggester *phrasebook.Suggester

	// Recorder receives one decision per fragment. Defaults to a
	// [audit.LogRecorder] on the loop's logger.
	Recorder audit.Recorder

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default]. The loop adds a "session" attr.
	Logger *slog.Logger

	// SessionID identifies this loop in logs and audit records.
	// A UUID is generated when empty.
	SessionID string
}

// Loop consumes one recognition stream until it ends.
type Loop struct {
	id         string
	stream     recognize.Session
	table      *phrasebook.Table
	dispatcher *Dispatcher
	suggester  *phrasebook.Suggester
	recorder   audit.Recorder
	metrics    *observe.Metrics
	log        *slog.Logger

	mu      sync.Mutex
	state   State
	started bool
}

// New validates cfg and returns a Loop in [StateIdle].
func New(cfg Config) (*Loop, error) {
	if cfg.Stream == nil {
		return nil, errors.New("session: Stream must not be nil")
	}
	if cfg.Table == nil {
		return nil, errors.New("session: Table must not be nil")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("session: Dispatcher must not be nil")
	}

	id := cfg.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session", id)

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = audit.NewLogRecorder(log)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	return &Loop{
		id:         id,
		stream:     cfg.Stream,
		table:      cfg.Table,
		dispatcher: cfg.Dispatcher,
		suggester:  cfg.Suggester,
		recorder:   recorder,
		metrics:    metrics,
		log:        log,
		state:      StateIdle,
	}, nil
}

// ID returns the session identifier.
func (l *Loop) ID() string { return l.id }

// State returns the loop's current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run consumes the stream until it ends. It returns nil when the stream
// closes cleanly, ctx.Err() on cancellation, and an error wrapping
// [ErrRecognizerStream] when the stream breaks. The recognizer session is
// closed on every exit path.
//
// Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return errors.New("session: loop already started")
	}
	l.started = true
	l.mu.Unlock()

	l.metrics.ActiveSessions.Add(ctx, 1)
	defer func() {
		if err := l.stream.Close(); err != nil {
			l.log.Warn("recognizer close failed", "err", err)
		}
		l.setState(StateStopped)
		l.metrics.ActiveSessions.Add(ctx, -1)
	}()

	l.log.Info("session started", "phrases", l.table.Len())

	for {
		l.setState(StateListening)
		select {
		case <-ctx.Done():
			l.log.Info("session cancelled")
			return ctx.Err()
		case frag, ok := <-l.stream.Fragments():
			if !ok {
				if err := l.stream.Err(); err != nil {
					return fmt.Errorf("%w: %w", ErrRecognizerStream, err)
				}
				l.log.Info("recognizer stream ended")
				return nil
			}
			l.process(ctx, frag)
		}
	}
}

// process takes one fragment through Matching and, on a hit, Dispatching.
// It never returns an error: dispatch failures are logged against the
// fragment and the loop moves on.
func (l *Loop) process(ctx context.Context, frag recognize.Fragment) {
	decision := audit.Decision{
		ID:         uuid.NewString(),
		SessionID:  l.id,
		Fragment:   frag.Text,
		Confidence: frag.Confidence,
		CreatedAt:  time.Now(),
	}

	l.setState(StateMatching)
	start := time.Now()
	m, matched := l.table.Match(frag.Text)
	decision.MatchDuration = time.Since(start)
	l.metrics.MatchDuration.Record(ctx, decision.MatchDuration.Seconds())

	if !matched {
		decision.Outcome = audit.OutcomeNoMatch
		if l.suggester != nil {
			if s, ok := l.suggester.Suggest(frag.Text); ok {
				decision.SuggestedPhraseID = s.PhraseID
				decision.SuggestionScore = s.Score
			}
		}
		l.finish(ctx, decision)
		return
	}

	decision.PhraseID = m.PhraseID
	decision.Canonical = m.Canonical
	decision.Variant = m.Variant

	l.setState(StateDispatching)
	start = time.Now()
	err := l.dispatcher.Dispatch(ctx, m)
	decision.DispatchDuration = time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	l.metrics.DispatchDuration.Record(ctx, decision.DispatchDuration.Seconds(),
		metric.WithAttributes(observe.Attr("status", status)),
	)

	switch {
	case err == nil:
		decision.Outcome = audit.OutcomeDispatched
	case errors.Is(err, ErrPlayback):
		decision.Outcome = audit.OutcomePlaybackFailed
	default:
		decision.Outcome = audit.OutcomeSynthesisFailed
	}

	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; the cancellation surfaces at the top of the
			// next iteration.
			l.log.Debug("dispatch aborted during shutdown", "phrase", m.PhraseID, "err", err)
		} else {
			l.log.Error("readback dispatch failed", "phrase", m.PhraseID, "err", err)
		}
	}

	l.finish(ctx, decision)
}

// finish counts the outcome and hands the decision to the recorder. A
// failing recorder is itself only a diagnostic problem.
func (l *Loop) finish(ctx context.Context, d audit.Decision) {
	l.metrics.RecordFragment(ctx, string(d.Outcome))
	if err := l.recorder.Record(ctx, d); err != nil {
		l.log.Warn("audit record failed", "decision", d.ID, "err", err)
	}
}
