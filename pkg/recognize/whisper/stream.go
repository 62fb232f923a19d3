package whisper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/recognize"
)

const (
	// rmsThreshold is the root-mean-square energy level below which a PCM
	// chunk counts as silence. 16-bit samples peak at 32 767; 300 is
	// near-silence even for noisy radio captures.
	rmsThreshold = 300.0

	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000

	// closeFlushTimeout bounds the final inference performed when a session
	// ends with speech still buffered.
	closeFlushTimeout = 30 * time.Second
)

// errClosed is returned by SendAudio once the session has ended.
var errClosed = errors.New("whisper: session is closed")

// inferFunc transcribes one complete utterance of raw PCM. The HTTP
// provider implements it as a round trip to whisper-server; the native
// provider as an in-process whisper.cpp call.
type inferFunc func(ctx context.Context, pcm []byte) (string, error)

// session is a live transcription session shared by both provider
// variants. It implements recognize.Session. All mutable state driving
// silence detection and buffering is confined to the processLoop goroutine,
// so no further synchronisation is needed.
type session struct {
	// immutable configuration (set once at stream start)
	format              audio.Format
	silenceThresholdMs  int
	maxBufferDurationMs int
	infer               inferFunc

	audioCh   chan []byte
	fragments chan recognize.Fragment

	// lifecycle
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	// err is written by processLoop before fragments is closed; the close
	// publishes it to readers that honour the Err contract.
	err error
}

var _ recognize.Session = (*session)(nil)

// startSession spawns the processing goroutine and returns the live session.
func startSession(ctx context.Context, format audio.Format, silenceMs, maxBufferMs int, infer inferFunc) *session {
	s := &session{
		format:              format,
		silenceThresholdMs:  silenceMs,
		maxBufferDurationMs: maxBufferMs,
		infer:               infer,

		audioCh:   make(chan []byte, 256),
		fragments: make(chan recognize.Fragment, 64),
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.processLoop(ctx)
	return s
}

// SendAudio queues a chunk of raw 16-bit little-endian signed PCM audio for
// silence analysis and buffering. The chunk's format must match the one
// agreed at stream start. Calling SendAudio after Close returns an error.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errClosed
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errClosed
	}
}

// Fragments returns the channel of recognized fragments. It is closed when
// the session ends.
func (s *session) Fragments() <-chan recognize.Fragment { return s.fragments }

// Err reports the terminal stream error. It must only be called after
// Fragments has closed; nil means the session ended cleanly.
func (s *session) Err() error { return s.err }

// Close terminates the session, flushes any pending speech audio for a
// final transcription, closes the Fragments channel, and releases all
// associated resources. Calling Close more than once is safe and returns nil.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop is the single goroutine responsible for silence detection,
// audio buffering, and inference dispatch.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.fragments)

	var (
		buffer    []byte // accumulated PCM for the current utterance
		hadSpeech bool   // true once any high-energy chunk has been buffered
		silenceMs int    // consecutive silence accumulated after speech (ms)
	)

	bytesPerMs := s.format.BytesPerSecond() / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32 // safe fallback (16 kHz, mono, 16-bit)
	}
	maxBufferBytes := s.maxBufferDurationMs * bytesPerMs

	// doFlush transcribes the buffered utterance and emits the resulting
	// fragment. Buffer state resets regardless of outcome. A non-nil error
	// means the recognizer backend failed and the stream must end: dropping
	// an utterance silently would break the arrival-order contract the
	// consumer depends on.
	doFlush := func(flushCtx context.Context) error {
		if len(buffer) == 0 || !hadSpeech {
			buffer, hadSpeech, silenceMs = nil, false, 0
			return nil
		}

		pcm := buffer
		buffer, hadSpeech, silenceMs = nil, false, 0

		text, err := s.infer(flushCtx, pcm)
		if err != nil {
			return err
		}
		if text == "" {
			return nil
		}

		s.emit(ctx, recognize.Fragment{
			Text:          text,
			AudioDuration: audio.Clip{Data: pcm, Format: s.format}.Duration(),
		})
		return nil
	}

	// flushWithTimeout performs the final flush on a fresh background
	// context so an already-cancelled ctx cannot abort transcription of
	// audio that was captured before the session ended.
	flushWithTimeout := func() error {
		fc, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
		defer cancel()
		return doFlush(fc)
	}

	for {
		select {
		case <-ctx.Done():
			s.err = flushWithTimeout()
			return

		case <-s.done:
			s.err = flushWithTimeout()
			return

		case chunk, ok := <-s.audioCh:
			if !ok {
				s.err = flushWithTimeout()
				return
			}

			rms := audio.RMS(chunk)
			chunkMs := audio.DurationMs(chunk, s.format)

			if rms < rmsThreshold {
				// Leading silence before any speech is discarded.
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, chunk...)
					if silenceMs >= s.silenceThresholdMs {
						if err := doFlush(ctx); err != nil {
							s.err = err
							return
						}
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				// Force flush once the buffer passes the size limit so
				// continuous speech cannot grow memory without bound.
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					if err := doFlush(ctx); err != nil {
						s.err = err
						return
					}
				}
			}
		}
	}
}

// emit delivers frag in arrival order. While the session is live it blocks
// for backpressure; once teardown has begun delivery falls back to the
// channel buffer so a close-flush fragment still reaches a consumer that
// drains the channel.
func (s *session) emit(ctx context.Context, frag recognize.Fragment) {
	select {
	case s.fragments <- frag:
	case <-ctx.Done():
	case <-s.done:
		select {
		case s.fragments <- frag:
		default:
		}
	}
}
