// Package mock provides a configurable test double for the speak package.
//
// Use Synthesizer to verify which phrases were synthesized and in what
// order, and to inject failures either globally (SynthesizeErr) or for
// specific phrase texts (ErrForText).
package mock

import (
	"context"
	"sync"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/speak"
)

// SynthesizeCall records a single invocation of Synthesizer.Synthesize.
type SynthesizeCall struct {
	// Text is the phrase text passed to Synthesize.
	Text string
	// Voice is the voice passed to Synthesize.
	Voice speak.Voice
}

// Synthesizer is a mock implementation of speak.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Clip is returned by every successful Synthesize call. If its Format
	// is the zero value, a 24 kHz mono format is filled in.
	Clip audio.Clip

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// ErrForText maps phrase text to an error returned for exactly that
	// text, letting tests fail one phrase while others succeed.
	// SynthesizeErr wins when both are set.
	ErrForText map[string]error

	// Voices is returned by ListVoices.
	Voices []speak.Voice

	// ListVoicesErr, if non-nil, is returned by every ListVoices call.
	ListVoicesErr error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// ListVoicesCallCount is the number of times ListVoices was called.
	ListVoicesCallCount int
}

// Synthesize records the call, then returns either a configured error or
// Clip.
func (s *Synthesizer) Synthesize(_ context.Context, text string, voice speak.Voice) (audio.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if s.SynthesizeErr != nil {
		return audio.Clip{}, s.SynthesizeErr
	}
	if err, ok := s.ErrForText[text]; ok {
		return audio.Clip{}, err
	}
	clip := s.Clip
	if clip.Format == (audio.Format{}) {
		clip.Format = audio.Format{SampleRate: 24000, Channels: 1}
	}
	return clip, nil
}

// ListVoices records the call and returns Voices, ListVoicesErr.
func (s *Synthesizer) ListVoices(context.Context) ([]speak.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListVoicesCallCount++
	if s.ListVoicesErr != nil {
		return nil, s.ListVoicesErr
	}
	return s.Voices, nil
}

// SynthesizeCallCount returns the number of Synthesize calls. Thread-safe.
func (s *Synthesizer) SynthesizeCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SynthesizeCalls)
}

// SynthesizedTexts returns the texts passed to Synthesize, in call order.
// Thread-safe.
func (s *Synthesizer) SynthesizedTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := make([]string, len(s.SynthesizeCalls))
	for i, c := range s.SynthesizeCalls {
		texts[i] = c.Text
	}
	return texts
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = nil
	s.ListVoicesCallCount = 0
}

// Ensure Synthesizer implements speak.Synthesizer at compile time.
var _ speak.Synthesizer = (*Synthesizer)(nil)
