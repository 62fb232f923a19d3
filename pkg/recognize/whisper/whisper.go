// Package whisper provides whisper.cpp-backed recognizer providers.
//
// Two variants exist. [Provider] talks to a running whisper-server binary
// over its REST API (POST /inference). [NativeProvider] loads the model
// in-process through the whisper.cpp Go bindings and needs no server.
//
// whisper.cpp is a batch (non-streaming) transcription engine, so both
// variants simulate streaming: incoming PCM is buffered, an energy-based
// silence detector segments utterances, and each completed utterance is
// transcribed as one batch request whose text becomes a single fragment.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	    whisper.WithSilenceThresholdMs(500),
//	)
//	sess, err := p.StartStream(ctx, cfg)
//	sess.SendAudio(pcmChunk)
//	frag := <-sess.Fragments()
//	sess.Close()
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/recognize"
)

// Compile-time assertion that Provider implements recognize.Provider.
var _ recognize.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper-server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with, which is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code sent to the whisper-server
// (e.g., "en", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithFormat sets the default PCM format assumed for sessions whose
// StreamConfig leaves the format unset. It must match the actual audio
// delivered via SendAudio since it drives buffer durations and silence
// windows. Defaults to 16 kHz mono.
func WithFormat(f audio.Format) Option {
	return func(p *Provider) {
		p.format = f
	}
}

// WithSilenceThresholdMs sets the consecutive-silence duration (in
// milliseconds) that triggers a flush of the accumulated speech buffer to
// the transcription engine. Shorter values produce more responsive
// fragments at the cost of potentially splitting utterances. Defaults to
// 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) {
		p.silenceThresholdMs = ms
	}
}

// WithMaxBufferDurationMs sets the maximum duration of audio (in
// milliseconds) that may accumulate before a flush is forced regardless of
// silence. This prevents unbounded memory growth during continuous speech.
// Defaults to 10 000 ms (10 s).
func WithMaxBufferDurationMs(ms int) Option {
	return func(p *Provider) {
		p.maxBufferDurationMs = ms
	}
}

// Provider implements recognize.Provider backed by a whisper.cpp HTTP
// server. Multiple sessions may be open simultaneously; each session
// maintains its own audio buffer and goroutine.
type Provider struct {
	serverURL           string
	model               string
	language            string
	format              audio.Format
	silenceThresholdMs  int
	maxBufferDurationMs int
	httpClient          *http.Client
}

// New creates a Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
// Functional options may be provided to override defaults.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:           serverURL,
		language:            defaultLanguage,
		format:              audio.Format{SampleRate: defaultSampleRate, Channels: 1},
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
		httpClient:          &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a new transcription session. The returned session is
// ready to accept audio immediately. It respects cfg.Format and
// cfg.Language; zero values fall back to the provider-level defaults.
//
// Returns an error only if the context is already cancelled; no network
// connection is established until the first flush.
func (p *Provider) StartStream(ctx context.Context, cfg recognize.StreamConfig) (recognize.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	format := cfg.Format
	if format.SampleRate <= 0 {
		format.SampleRate = p.format.SampleRate
	}
	if format.Channels <= 0 {
		format.Channels = p.format.Channels
	}

	infer := func(ictx context.Context, pcm []byte) (string, error) {
		return p.infer(ictx, pcm, format, lang)
	}
	return startSession(ctx, format, p.silenceThresholdMs, p.maxBufferDurationMs, infer), nil
}

// infer encodes pcm as a WAV file and POSTs it to the whisper.cpp
// /inference endpoint as multipart/form-data. It returns the transcribed
// text or an error.
func (p *Provider) infer(ctx context.Context, pcm []byte, format audio.Format, lang string) (string, error) {
	wav := audio.EncodeWAV(audio.Clip{Data: pcm, Format: format})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// Primary audio field.
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	// Optional hint fields.
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return result.Text, nil
}
