// Package recognize defines the speech-recognizer boundary: a [Provider]
// opens a [Session], callers push raw PCM audio into it, and recognized
// text fragments come back on a channel as the engine commits utterances.
//
// Implementations live in sub-packages (recognize/whisper,
// recognize/deepgram) plus a configurable mock. The interfaces are
// intentionally narrow so the session loop never learns which engine is
// behind them.
package recognize

import (
	"context"
	"time"

	"github.com/vhfnav/readback/pkg/audio"
)

// Fragment is one unit of recognized text for a single utterance segment.
// Fragment arrival order defines the processing order downstream; nothing
// else about a fragment is guaranteed, including length or grammaticality.
type Fragment struct {
	// Text is the raw hypothesis exactly as the engine produced it.
	Text string

	// Confidence is the engine's score in [0, 1], or 0 when the engine
	// does not report one.
	Confidence float64

	// AudioDuration is the length of source audio behind this fragment,
	// or 0 when unknown.
	AudioDuration time.Duration
}

// StreamConfig carries per-session parameters for [Provider.StartStream].
// Zero values fall back to provider defaults.
type StreamConfig struct {
	// Format is the PCM format of audio pushed via [Session.SendAudio].
	Format audio.Format

	// Language is a BCP-47 hint for the engine (e.g. "en").
	Language string
}

// Session is a live recognition stream.
//
// Implementations must be safe for concurrent use: SendAudio may be called
// from the capture goroutine while another goroutine ranges over
// Fragments.
type Session interface {
	// SendAudio queues a chunk of raw 16-bit little-endian PCM in the
	// format agreed via StreamConfig. Returns an error once the session
	// is closed.
	SendAudio(chunk []byte) error

	// Fragments returns the channel of recognized fragments. The channel
	// is closed when the session ends, whether cleanly or not; consult
	// Err afterwards to tell the two apart.
	Fragments() <-chan Fragment

	// Err reports the terminal stream error. It must only be called
	// after Fragments is closed; nil means the session ended cleanly.
	Err() error

	// Close terminates the session and releases its resources. Safe to
	// call more than once.
	Close() error
}

// Provider opens recognition sessions.
type Provider interface {
	// StartStream opens a new session. The supplied ctx governs the
	// whole session lifetime: cancelling it ends the stream.
	StartStream(ctx context.Context, cfg StreamConfig) (Session, error)
}
