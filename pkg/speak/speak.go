// Package speak defines the Synthesizer interface for text-to-speech
// backends.
//
// A synthesizer wraps a speech service (e.g. a local Coqui TTS server or the
// OpenAI speech API) and renders one canonical phrase at a time into a PCM
// [audio.Clip]. The readback pipeline synthesizes short, fixed phrases, so
// the interface is whole-utterance rather than streaming; decorators in this
// package (caching, rate limiting) and in internal/resilience compose around
// the same interface.
//
// Implementations must be safe for concurrent use.
package speak

import (
	"context"
	"strings"

	"github.com/vhfnav/readback/pkg/audio"
)

// Voice identifies one voice offered by a synthesizer backend.
type Voice struct {
	// ID is the provider-assigned identifier, passed back verbatim in
	// synthesis requests.
	ID string

	// Name is the human-readable name (e.g. "en_US-amy-medium", "alloy").
	Name string

	// Language is a BCP-47 tag when the provider reports one.
	Language string
}

// Synthesizer is the abstraction over any text-to-speech backend.
type Synthesizer interface {
	// Synthesize renders text with the given voice and returns the
	// resulting PCM clip. The clip's Format reports whatever the backend
	// natively produces; callers convert with audio.Convert when a sink
	// needs something else.
	//
	// An empty voice ID asks the backend for its default voice.
	Synthesize(ctx context.Context, text string, voice Voice) (audio.Clip, error)

	// ListVoices returns the voices currently offered by this backend.
	// The list may change between calls if the underlying service adds
	// or removes voices.
	ListVoices(ctx context.Context) ([]Voice, error)
}

// SelectVoice returns the first voice whose name contains pref,
// case-insensitively, falling back to the first voice in the list when no
// name matches or pref is empty. Returns false only for an empty list.
func SelectVoice(voices []Voice, pref string) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	if pref != "" {
		want := strings.ToLower(pref)
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), want) {
				return v, true
			}
		}
	}
	return voices[0], true
}
