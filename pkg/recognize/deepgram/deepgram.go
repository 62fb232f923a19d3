// Package deepgram provides a recognizer provider backed by the Deepgram
// streaming WebSocket API. Unlike the whisper providers it needs no local
// inference: PCM chunks are relayed to Deepgram as binary frames and
// committed transcripts come back as JSON events, so fragments arrive with
// true streaming latency.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/recognize"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Compile-time assertion that Provider implements recognize.Provider.
var _ recognize.Provider = (*Provider)(nil)

// errClosed is returned by SendAudio once the session has ended.
var errClosed = errors.New("deepgram: session is closed")

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "nova-2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en",
// "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithFormat sets the default PCM format assumed for sessions whose
// StreamConfig leaves the format unset. Defaults to 16 kHz mono.
func WithFormat(f audio.Format) Option {
	return func(p *Provider) {
		p.format = f
	}
}

// WithKeywords supplies vocabulary boosts for words the recognizer should
// favour, such as the phrase vocabulary ("runway", "wilco", "squawk").
// Each entry may carry an optional boost suffix in Deepgram's word:boost
// form, e.g. "wilco:5".
func WithKeywords(words ...string) Option {
	return func(p *Provider) {
		p.keywords = append(p.keywords, words...)
	}
}

// Provider implements recognize.Provider backed by the Deepgram streaming
// API.
type Provider struct {
	apiKey   string
	model    string
	language string
	format   audio.Format
	keywords []string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		format:   audio.Format{SampleRate: defaultSampleRate, Channels: 1},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Deepgram. It
// respects cfg.Format and cfg.Language; zero values fall back to the
// provider-level defaults.
func (p *Provider) StartStream(ctx context.Context, cfg recognize.StreamConfig) (recognize.Session, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &session{
		conn:      conn,
		fragments: make(chan recognize.Fragment, 64),
		audio:     make(chan []byte, 256),
		done:      make(chan struct{}),
		writeDone: make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given
// config.
func (p *Provider) buildURL(cfg recognize.StreamConfig) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	f := cfg.Format
	if f.SampleRate <= 0 {
		f.SampleRate = p.format.SampleRate
	}
	if f.Channels <= 0 {
		f.Channels = p.format.Channels
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	// Interim hypotheses would surface the same utterance more than once,
	// so only committed transcripts are requested.
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(f.SampleRate))
	q.Set("channels", strconv.Itoa(f.Channels))

	for _, kw := range p.keywords {
		q.Add("keywords", kw)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----------------------------------------------------------------

// deepgramResponse is the JSON structure returned by Deepgram for a Results
// event.
type deepgramResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram streaming session. It implements
// recognize.Session.
type session struct {
	conn      *websocket.Conn
	fragments chan recognize.Fragment
	audio     chan []byte

	done      chan struct{}
	writeDone chan struct{}
	once      sync.Once
	wg        sync.WaitGroup

	// err is written by readLoop before fragments is closed; the close
	// publishes it to readers that honour the Err contract.
	err error
}

var _ recognize.Session = (*session)(nil)

// SendAudio queues a PCM audio chunk for delivery to Deepgram.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errClosed
	default:
	}
	select {
	case s.audio <- chunk:
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

// Close terminates the session cleanly. It drains queued audio, asks
// Deepgram to transcribe whatever remains buffered server-side, and waits
// for the resulting fragments before tearing the connection down. Calling
// Close more than once is safe and returns nil.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		<-s.writeDone
		// CloseStream makes the server flush pending audio and close
		// from its side once the last Results event is out.
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// closing reports whether teardown has begun.
func (s *session) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// writeLoop reads from the audio channel and relays binary frames to
// Deepgram. On shutdown it drains whatever is queued first, so the
// CloseStream flush covers all audio handed to SendAudio.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.writeDone)
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case chunk := <-s.audio:
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON events from Deepgram and delivers committed
// transcripts as fragments in arrival order.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.fragments)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// A read failure after CloseStream or cancellation is the
			// normal end of the stream; anything else is a transport
			// failure the consumer must see.
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil && !s.closing() {
				s.err = fmt.Errorf("deepgram: read: %w", err)
			}
			return
		}

		frag, ok := parseResponse(msg)
		if !ok {
			continue
		}

		select {
		case s.fragments <- frag:
		case <-s.done:
			// Teardown in progress. Use the buffer if there is room so
			// flush fragments still reach a consumer that drains.
			select {
			case s.fragments <- frag:
			default:
			}
		}
	}
}

// parseResponse parses a raw Deepgram WebSocket message into a Fragment.
// Returns (zero, false) for messages that should be ignored: non-Results
// events, interim results, results without alternatives, and the empty
// transcripts the engine produces for pure silence.
func parseResponse(data []byte) (recognize.Fragment, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return recognize.Fragment{}, false
	}
	if resp.Type != "Results" || !resp.IsFinal {
		return recognize.Fragment{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return recognize.Fragment{}, false
	}

	alt := resp.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return recognize.Fragment{}, false
	}

	return recognize.Fragment{
		Text:          alt.Transcript,
		Confidence:    alt.Confidence,
		AudioDuration: time.Duration(resp.Duration * float64(time.Second)),
	}, true
}
