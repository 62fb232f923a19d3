// Package output defines the Sink interface for audio playback backends.
//
// A sink takes synthesized readback clips and delivers them somewhere a
// human can hear them: a Discord voice channel, a directory of WAV files
// for offline review, or a test double. Sinks own the last leg of the
// pipeline, so [Sink.Play] is synchronous: when it returns nil the clip has
// been handed to the underlying device or written out, preserving the
// arrival order of the fragments that produced the clips.
package output

import (
	"context"

	"github.com/vhfnav/readback/pkg/audio"
)

// Sink plays synthesized audio clips.
//
// Implementations must tolerate clips in any PCM format and convert
// internally when the backend is picky about sample rate or channel count.
type Sink interface {
	// Play delivers one clip. It blocks until the clip is accepted by the
	// backend or ctx is cancelled. Clips passed to successive Play calls
	// must be audible in call order.
	Play(ctx context.Context, clip audio.Clip) error

	// Close releases the sink's resources. No Play calls may follow.
	// Safe to call more than once.
	Close() error
}
