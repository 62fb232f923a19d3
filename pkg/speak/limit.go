package speak

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/vhfnav/readback/pkg/audio"
)

// Limiter is a Synthesizer decorator that throttles synthesis requests with
// a token bucket. It protects hosted backends from bursts when many
// fragments match in quick succession.
type Limiter struct {
	next    Synthesizer
	limiter *rate.Limiter
}

var _ Synthesizer = (*Limiter)(nil)

// NewLimiter wraps next with a token-bucket limiter allowing rps requests
// per second with the given burst size.
func NewLimiter(next Synthesizer, rps float64, burst int) *Limiter {
	return &Limiter{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Synthesize blocks until the limiter grants a token, then delegates to the
// wrapped synthesizer. Blocking rather than rejecting keeps dispatches in
// arrival order. Returns the context's error if it is cancelled while
// waiting.
func (l *Limiter) Synthesize(ctx context.Context, text string, voice Voice) (audio.Clip, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return audio.Clip{}, err
	}
	return l.next.Synthesize(ctx, text, voice)
}

// ListVoices delegates to the wrapped synthesizer without consuming a token.
func (l *Limiter) ListVoices(ctx context.Context) ([]Voice, error) {
	return l.next.ListVoices(ctx)
}
