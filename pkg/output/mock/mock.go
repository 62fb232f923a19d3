// Package mock provides a recording test double for the output package.
package mock

import (
	"context"
	"sync"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/output"
)

// Sink is a mock implementation of output.Sink that records every clip
// played through it.
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// Played records every clip passed to Play, in order. Clip data is
	// copied so later mutation by the caller cannot corrupt the record.
	Played []audio.Clip

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Play records the clip and returns PlayErr.
func (s *Sink) Play(_ context.Context, clip audio.Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(clip.Data))
	copy(cp, clip.Data)
	s.Played = append(s.Played, audio.Clip{Data: cp, Format: clip.Format})
	return s.PlayErr
}

// Close records the call and returns CloseErr.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// PlayCallCount returns the number of Play calls. Thread-safe.
func (s *Sink) PlayCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Played)
}

// Reset clears all recorded calls. Thread-safe.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Played = nil
	s.CloseCallCount = 0
}

// Ensure Sink implements output.Sink at compile time.
var _ output.Sink = (*Sink)(nil)
