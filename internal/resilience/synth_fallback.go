package resilience

import (
	"context"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/speak"
)

// voicedSynth pairs a synthesizer with the voice resolved against its own
// catalogue. Voice IDs are backend-specific, so each entry in a chain
// carries its own.
type voicedSynth struct {
	synth speak.Synthesizer
	voice speak.Voice
}

// SynthFallback implements [speak.Synthesizer] with automatic failover
// across multiple TTS backends. Each backend has its own circuit breaker,
// so a flapping primary is bypassed instead of failing every fragment.
type SynthFallback struct {
	group *FallbackGroup[voicedSynth]
}

// Compile-time interface assertion.
var _ speak.Synthesizer = (*SynthFallback)(nil)

// NewSynthFallback creates a [SynthFallback] with primary as the preferred
// backend. voice is the voice resolved against primary's catalogue; the
// zero Voice defers to the voice passed to Synthesize.
func NewSynthFallback(primary speak.Synthesizer, primaryName string, voice speak.Voice, cfg FallbackConfig) *SynthFallback {
	return &SynthFallback{
		group: NewFallbackGroup(voicedSynth{synth: primary, voice: voice}, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesizer with its own resolved
// voice. Fallbacks are tried in registration order after the primary.
func (f *SynthFallback) AddFallback(name string, s speak.Synthesizer, voice speak.Voice) {
	f.group.AddFallback(name, voicedSynth{synth: s, voice: voice})
}

// Synthesize renders text through the first healthy backend. Each entry
// speaks with its own resolved voice; the caller's voice is used only for
// entries registered without one. Returns [ErrAllFailed] when every
// backend fails or has an open breaker.
func (f *SynthFallback) Synthesize(ctx context.Context, text string, voice speak.Voice) (audio.Clip, error) {
	return ExecuteWithResult(f.group, func(vs voicedSynth) (audio.Clip, error) {
		v := vs.voice
		if v == (speak.Voice{}) {
			v = voice
		}
		return vs.synth.Synthesize(ctx, text, v)
	})
}

// ListVoices returns the voice catalogue of the first healthy backend.
func (f *SynthFallback) ListVoices(ctx context.Context) ([]speak.Voice, error) {
	return ExecuteWithResult(f.group, func(vs voicedSynth) ([]speak.Voice, error) {
		return vs.synth.ListVoices(ctx)
	})
}
