package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vhfnav/readback/internal/config"
	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/recognize"
)

// chunkInterval is how much audio each SendAudio call carries. 100 ms keeps
// the recognizer's silence detection responsive without flooding it with
// tiny writes.
const chunkInterval = 100 * time.Millisecond

// inputSource is one opened audio input: either a fully loaded file or a
// byte stream read as it arrives.
type inputSource struct {
	name     string
	format   audio.Format
	realtime bool

	// data holds the whole PCM payload for file inputs; nil otherwise.
	data []byte

	// stream delivers raw PCM for streaming inputs; nil for files.
	stream io.Reader
}

// openInput opens the configured audio source. WAV files carry their own
// format in the header, which overrides the configured sample rate and
// channel count. Everything else is treated as raw 16-bit little-endian PCM
// in the configured format.
func openInput(cfg config.InputConfig) (*inputSource, error) {
	format := audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}

	switch cfg.Source {
	case config.InputStdin:
		return &inputSource{
			name:   "stdin",
			format: format,
			stream: os.Stdin,
		}, nil

	case config.InputFile:
		raw, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("input: read %q: %w", cfg.Path, err)
		}
		in := &inputSource{
			name:     cfg.Path,
			format:   format,
			realtime: cfg.Realtime,
			data:     raw,
		}
		if strings.EqualFold(filepath.Ext(cfg.Path), ".wav") {
			clip, err := audio.DecodeWAV(raw)
			if err != nil {
				return nil, fmt.Errorf("input: decode %q: %w", cfg.Path, err)
			}
			in.data = clip.Data
			in.format = clip.Format
		}
		return in, nil

	default:
		return nil, fmt.Errorf("input: unknown source %q", cfg.Source)
	}
}

// duration returns the audio length of a file input, zero for streams.
func (in *inputSource) duration() time.Duration {
	bps := in.format.BytesPerSecond()
	if in.data == nil || bps <= 0 {
		return 0
	}
	return time.Duration(len(in.data)) * time.Second / time.Duration(bps)
}

// pump pushes the source's audio into sess in chunkInterval-sized pieces
// and closes the session when the source is exhausted, which makes the
// recognizer flush its remaining buffer. Realtime file inputs are paced at
// playback speed; otherwise chunks are sent as fast as the session accepts
// them.
func (in *inputSource) pump(ctx context.Context, log *slog.Logger, sess recognize.Session) error {
	chunkBytes := in.format.BytesPerSecond() / int(time.Second/chunkInterval)
	if chunkBytes <= 0 {
		return fmt.Errorf("input: unusable format %+v", in.format)
	}

	var err error
	if in.data != nil {
		err = in.pumpData(ctx, sess, chunkBytes)
	} else {
		err = in.pumpStream(ctx, sess, chunkBytes)
	}
	if err != nil {
		if ctx.Err() != nil {
			// The session loop reports cancellation; a send failure during
			// teardown is just noise.
			return ctx.Err()
		}
		return err
	}

	log.Info("input exhausted, flushing recognizer", "input", in.name)
	if err := sess.Close(); err != nil {
		log.Warn("recognizer flush failed", "err", err)
	}
	return nil
}

// pumpData streams an in-memory payload chunk by chunk.
func (in *inputSource) pumpData(ctx context.Context, sess recognize.Session, chunkBytes int) error {
	var ticker *time.Ticker
	if in.realtime {
		ticker = time.NewTicker(chunkInterval)
		defer ticker.Stop()
	}

	for off := 0; off < len(in.data); off += chunkBytes {
		if in.realtime {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		end := min(off+chunkBytes, len(in.data))
		if err := sess.SendAudio(in.data[off:end]); err != nil {
			return fmt.Errorf("input: send audio: %w", err)
		}
	}
	return nil
}

// pumpStream forwards a live byte stream. Reads block without honouring
// ctx; cancellation is picked up between chunks, which is good enough for
// stdin where the writer side ends with the process.
func (in *inputSource) pumpStream(ctx context.Context, sess recognize.Session, chunkBytes int) error {
	buf := make([]byte, chunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(in.stream, buf)
		if n > 0 {
			if sendErr := sess.SendAudio(buf[:n]); sendErr != nil {
				return fmt.Errorf("input: send audio: %w", sendErr)
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("input: read %s: %w", in.name, err)
		}
	}
}
