// Package wavdir provides an [output.Sink] that writes each clip to its own
// WAV file in a directory. It is the sink of choice for headless
// deployments and offline review: every readback lands on disk with a
// timestamped, strictly increasing file name, so a directory listing
// replays the session in dispatch order.
package wavdir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/output"
)

const defaultPrefix = "readback"

var _ output.Sink = (*Sink)(nil)

var errClosed = errors.New("wavdir: sink closed")

// Option configures a [Sink].
type Option func(*Sink)

// WithPrefix sets the file name prefix. Defaults to "readback".
func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		s.prefix = prefix
	}
}

// Sink writes clips as WAV files named
//
//	<prefix>-<UTC timestamp>-<sequence>.wav
//
// The sequence number makes names unique and sortable even when several
// clips arrive within the same second. Sink is safe for concurrent use.
type Sink struct {
	dir    string
	prefix string

	// now is the clock used for file names. Overridden in tests.
	now func() time.Time

	mu     sync.Mutex
	seq    int
	closed bool
}

// New creates a Sink writing into dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Sink, error) {
	if dir == "" {
		return nil, errors.New("wavdir: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wavdir: create directory: %w", err)
	}
	s := &Sink{
		dir:    dir,
		prefix: defaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Play encodes the clip as WAV and writes it to a new file. The write is
// synchronous: when Play returns nil the file is on disk.
func (s *Sink) Play(ctx context.Context, clip audio.Clip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(clip.Data) == 0 {
		return errors.New("wavdir: empty clip")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.seq++
	name := fmt.Sprintf("%s-%s-%06d.wav", s.prefix, s.now().UTC().Format("20060102-150405"), s.seq)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, audio.EncodeWAV(clip), 0o644); err != nil {
		return fmt.Errorf("wavdir: write %s: %w", name, err)
	}
	slog.Debug("wrote readback clip", "path", path, "duration", clip.Duration())
	return nil
}

// Close marks the sink closed. Files already written stay on disk.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
