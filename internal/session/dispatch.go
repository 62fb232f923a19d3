package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vhfnav/readback/internal/observe"
	"github.com/vhfnav/readback/internal/phrasebook"
	"github.com/vhfnav/readback/pkg/output"
	"github.com/vhfnav/readback/pkg/speak"
)

// ErrSynthesis marks a dispatch that failed in the synthesizer. Recoverable:
// the loop logs it and continues with the next fragment.
var ErrSynthesis = errors.New("session: synthesis failed")

// ErrPlayback marks a dispatch where synthesis succeeded but the output
// sink refused the clip. Recoverable like [ErrSynthesis].
var ErrPlayback = errors.New("session: playback failed")

// Dispatcher re-voices one matched phrase at a time: canonical text through
// the synthesizer, resulting clip into the sink. Calls are serialised by the
// session loop, so a Dispatcher holds no mutable state of its own.
type Dispatcher struct {
	synth   speak.Synthesizer
	sink    output.Sink
	voice   speak.Voice
	metrics *observe.Metrics
}

// DispatcherOption configures a [Dispatcher] during construction.
type DispatcherOption func(*Dispatcher)

// WithVoice sets the voice used for every synthesis call. The zero Voice
// asks the synthesizer for its default.
func WithVoice(v speak.Voice) DispatcherOption {
	return func(d *Dispatcher) { d.voice = v }
}

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher validates the backends and returns a Dispatcher.
func NewDispatcher(synth speak.Synthesizer, sink output.Sink, opts ...DispatcherOption) (*Dispatcher, error) {
	if synth == nil {
		return nil, errors.New("session: Synthesizer must not be nil")
	}
	if sink == nil {
		return nil, errors.New("session: Sink must not be nil")
	}
	d := &Dispatcher{
		synth:   synth,
		sink:    sink,
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Dispatch synthesizes m's canonical text and plays the clip. Errors wrap
// [ErrSynthesis] or [ErrPlayback] so the caller can tell the stages apart.
func (d *Dispatcher) Dispatch(ctx context.Context, m phrasebook.Match) error {
	ctx, span := observe.StartSpan(ctx, "readback.dispatch",
		trace.WithAttributes(observe.Attr("phrase", m.PhraseID)),
	)
	defer span.End()

	start := time.Now()
	clip, err := d.synth.Synthesize(ctx, m.Canonical, d.voice)
	synthDur := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	d.metrics.SynthesisDuration.Record(ctx, synthDur.Seconds(),
		metric.WithAttributes(observe.Attr("status", status)),
	)
	if err != nil {
		return fmt.Errorf("%w: phrase %q: %w", ErrSynthesis, m.PhraseID, err)
	}

	if err := d.sink.Play(ctx, clip); err != nil {
		return fmt.Errorf("%w: phrase %q: %w", ErrPlayback, m.PhraseID, err)
	}
	return nil
}
