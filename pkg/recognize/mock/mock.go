// Package mock provides test doubles for the recognize package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig. Use Session to feed controlled Fragment values and inspect
// which audio chunks were delivered.
//
// Example:
//
//	sess := mock.NewSession(4)
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartStream(ctx, cfg)
//	sess.Emit(recognize.Fragment{Text: "cleared to land"})
//	sess.End(nil)
package mock

import (
	"context"
	"sync"

	"github.com/vhfnav/readback/pkg/recognize"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg recognize.StreamConfig
}

// Provider is a mock implementation of recognize.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the Session returned by StartStream. If nil, StartStream
	// returns a new default Session with a buffered fragment channel.
	Session recognize.Session

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns Session, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg recognize.StreamConfig) (recognize.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(16), nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
}

// Ensure Provider implements recognize.Provider at compile time.
var _ recognize.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of recognize.Session. Feed fragments to
// the consumer with Emit and finish the stream with End; End(nil) models a
// clean shutdown, End(err) models a broken recognizer stream.
type Session struct {
	mu sync.Mutex

	fragments chan recognize.Fragment
	err       error
	ended     bool

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession returns a Session whose fragment channel has the given buffer
// size, so tests can Emit without a consumer running yet.
func NewSession(buf int) *Session {
	return &Session{fragments: make(chan recognize.Fragment, buf)}
}

// Emit delivers one fragment to the consumer. It panics if called after End,
// mirroring a send on a closed channel.
func (s *Session) Emit(f recognize.Fragment) {
	s.fragments <- f
}

// End closes the fragment channel. A non-nil err becomes the terminal error
// reported by Err.
func (s *Session) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.fragments)
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Fragments returns the fragment channel.
func (s *Session) Fragments() <-chan recognize.Fragment {
	return s.fragments
}

// Err returns the terminal error set via End.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close records the call, ends the stream if still open, and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	closeErr := s.CloseErr
	s.CloseCallCount++
	ended := s.ended
	if !ended {
		s.ended = true
		close(s.fragments)
	}
	s.mu.Unlock()
	return closeErr
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.CloseCallCount = 0
}

// Ensure Session implements recognize.Session at compile time.
var _ recognize.Session = (*Session)(nil)
