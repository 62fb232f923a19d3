package session_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/vhfnav/readback/internal/phrasebook"
	"github.com/vhfnav/readback/internal/session"
	"github.com/vhfnav/readback/pkg/audio"
	outmock "github.com/vhfnav/readback/pkg/output/mock"
	"github.com/vhfnav/readback/pkg/speak"
	speakmock "github.com/vhfnav/readback/pkg/speak/mock"
)

var testMatch = phrasebook.Match{
	PhraseID:  "landing_clearance",
	Canonical: "Cleared to land runway two seven",
	Variant:   "cleared to land",
}

func TestDispatch_SynthesizesAndPlays(t *testing.T) {
	t.Parallel()

	clip := audio.Clip{
		Data:   []byte{1, 2, 3, 4},
		Format: audio.Format{SampleRate: 24000, Channels: 1},
	}
	voice := speak.Voice{ID: "v1", Name: "amy"}
	synth := &speakmock.Synthesizer{Clip: clip}
	sink := &outmock.Sink{}

	disp, err := session.NewDispatcher(synth, sink, session.WithVoice(voice))
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	if err := disp.Dispatch(context.Background(), testMatch); err != nil {
		t.Fatalf("Dispatch() error = %v, want nil", err)
	}

	if len(synth.SynthesizeCalls) != 1 {
		t.Fatalf("synthesize calls = %d, want 1", len(synth.SynthesizeCalls))
	}
	call := synth.SynthesizeCalls[0]
	if call.Text != testMatch.Canonical {
		t.Errorf("synthesized text = %q, want canonical %q", call.Text, testMatch.Canonical)
	}
	if call.Voice != voice {
		t.Errorf("synthesized voice = %+v, want %+v", call.Voice, voice)
	}

	if len(sink.Played) != 1 {
		t.Fatalf("sink plays = %d, want 1", len(sink.Played))
	}
	if !bytes.Equal(sink.Played[0].Data, clip.Data) {
		t.Errorf("played clip data = %v, want %v", sink.Played[0].Data, clip.Data)
	}
	if sink.Played[0].Format != clip.Format {
		t.Errorf("played clip format = %v, want %v", sink.Played[0].Format, clip.Format)
	}
}

func TestDispatch_SynthesisErrorSkipsPlayback(t *testing.T) {
	t.Parallel()

	cause := errors.New("model not loaded")
	synth := &speakmock.Synthesizer{SynthesizeErr: cause}
	sink := &outmock.Sink{}

	disp, err := session.NewDispatcher(synth, sink)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	err = disp.Dispatch(context.Background(), testMatch)
	if !errors.Is(err, session.ErrSynthesis) {
		t.Errorf("Dispatch() error = %v, want wrapped %v", err, session.ErrSynthesis)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Dispatch() error = %v, want wrapped %v", err, cause)
	}
	if got := sink.PlayCallCount(); got != 0 {
		t.Errorf("sink plays = %d, want 0", got)
	}
}

func TestDispatch_PlaybackErrorWrapsErrPlayback(t *testing.T) {
	t.Parallel()

	cause := errors.New("voice channel closed")
	synth := &speakmock.Synthesizer{}
	sink := &outmock.Sink{PlayErr: cause}

	disp, err := session.NewDispatcher(synth, sink)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	err = disp.Dispatch(context.Background(), testMatch)
	if !errors.Is(err, session.ErrPlayback) {
		t.Errorf("Dispatch() error = %v, want wrapped %v", err, session.ErrPlayback)
	}
	if errors.Is(err, session.ErrSynthesis) {
		t.Errorf("Dispatch() error = %v, must not wrap %v", err, session.ErrSynthesis)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Dispatch() error = %v, want wrapped %v", err, cause)
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	t.Parallel()

	if _, err := session.NewDispatcher(nil, &outmock.Sink{}); err == nil {
		t.Error("NewDispatcher(nil synth) error = nil, want error")
	}
	if _, err := session.NewDispatcher(&speakmock.Synthesizer{}, nil); err == nil {
		t.Error("NewDispatcher(nil sink) error = nil, want error")
	}
}
