// Package openai provides a synthesizer backed by the OpenAI speech API.
//
// Synthesis requests the raw PCM response format, which the API fixes at
// 24 kHz mono 16-bit, so clips need no container parsing. The API offers no
// voice-listing endpoint; ListVoices returns the documented fixed
// catalogue.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/speak"
)

// Compile-time interface assertion.
var _ speak.Synthesizer = (*Provider)(nil)

const (
	defaultModel = "gpt-4o-mini-tts"
	defaultVoice = "alloy"

	// pcmSampleRate is fixed by the API for the PCM response format.
	pcmSampleRate = 24000
)

// speechVoices is the fixed voice catalogue of the OpenAI speech API.
var speechVoices = []string{
	"alloy", "ash", "ballad", "coral", "echo", "fable",
	"nova", "onyx", "sage", "shimmer", "verse",
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	timeout      time.Duration
	maxRetries   int
	model        string
	voice        string
	instructions string
	speed        float64
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries caps the SDK's automatic retries of failed requests.
// Negative values leave the SDK default in place.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithModel sets the speech model (e.g., "tts-1", "gpt-4o-mini-tts").
// Defaults to "gpt-4o-mini-tts".
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithVoice sets the default voice used when a synthesis request carries an
// empty voice ID. Defaults to "alloy".
func WithVoice(voice string) Option {
	return func(c *config) {
		c.voice = voice
	}
}

// WithInstructions sets delivery instructions for models that support them
// (e.g., "Speak with the clipped cadence of an air traffic controller").
// Ignored by the tts-1 model family.
func WithInstructions(instructions string) Option {
	return func(c *config) {
		c.instructions = instructions
	}
}

// WithSpeed sets the speaking speed multiplier in [0.25, 4.0]. Zero leaves
// the API default of 1.0 in place.
func WithSpeed(speed float64) Option {
	return func(c *config) {
		c.speed = speed
	}
}

// Provider implements speak.Synthesizer using the OpenAI speech API.
type Provider struct {
	client       oai.Client
	model        string
	voice        string
	instructions string
	speed        float64
}

// New constructs an OpenAI speech Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{
		model:      defaultModel,
		voice:      defaultVoice,
		maxRetries: -1,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &Provider{
		client:       oai.NewClient(reqOpts...),
		model:        cfg.model,
		voice:        cfg.voice,
		instructions: cfg.instructions,
		speed:        cfg.speed,
	}, nil
}

// Synthesize renders text through the speech endpoint and returns the raw
// PCM clip. An empty voice ID falls back to the provider default voice.
func (p *Provider) Synthesize(ctx context.Context, text string, voice speak.Voice) (audio.Clip, error) {
	if text == "" {
		return audio.Clip{}, errors.New("openai: text must not be empty")
	}

	v := voice.ID
	if v == "" {
		v = p.voice
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(v),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if p.instructions != "" {
		params.Instructions = oai.String(p.instructions)
	}
	if p.speed > 0 {
		params.Speed = oai.Float(p.speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("openai: speech request: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("openai: read speech response: %w", err)
	}

	return audio.Clip{
		Data:   pcm,
		Format: audio.Format{SampleRate: pcmSampleRate, Channels: 1},
	}, nil
}

// ListVoices returns the fixed voice catalogue. All entries are English.
func (p *Provider) ListVoices(_ context.Context) ([]speak.Voice, error) {
	voices := make([]speak.Voice, 0, len(speechVoices))
	for _, name := range speechVoices {
		voices = append(voices, speak.Voice{ID: name, Name: name, Language: "en"})
	}
	return voices, nil
}
