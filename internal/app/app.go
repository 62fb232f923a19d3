// Package app wires the readback subsystems into a running relay.
//
// The App struct owns the full lifecycle: New loads the phrasebook and
// connects all backends, Run drives one recognition session to completion,
// and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithRecognizer, WithSynthesizer, WithSink, WithRecorder). When an option
// is not provided, New creates real backends from the config through the
// provider registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vhfnav/readback/internal/audit"
	"github.com/vhfnav/readback/internal/config"
	"github.com/vhfnav/readback/internal/health"
	"github.com/vhfnav/readback/internal/observe"
	"github.com/vhfnav/readback/internal/phrasebook"
	"github.com/vhfnav/readback/internal/resilience"
	"github.com/vhfnav/readback/internal/session"
	"github.com/vhfnav/readback/pkg/output"
	"github.com/vhfnav/readback/pkg/recognize"
	"github.com/vhfnav/readback/pkg/speak"
)

// voiceListTimeout caps the voice catalogue fetch at startup so a slow
// synthesizer cannot stall boot indefinitely.
const voiceListTimeout = 10 * time.Second

// App owns all subsystem lifetimes and orchestrates the readback pipeline.
type App struct {
	cfg *config.Config
	log *slog.Logger

	// Subsystems, initialised in New and torn down in Shutdown.
	table      *phrasebook.Table
	suggester  *phrasebook.Suggester
	recorder   audit.Recorder
	auditStore *audit.Store
	recognizer recognize.Provider
	synth      speak.Synthesizer
	sink       output.Sink
	voice      speak.Voice
	dispatcher *session.Dispatcher
	metrics    *observe.Metrics
	admin      *http.Server

	registry *config.Registry

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRegistry replaces the default provider registry.
func WithRegistry(reg *config.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithRecognizer injects a recognition provider instead of creating one
// from config.
func WithRecognizer(p recognize.Provider) Option {
	return func(a *App) { a.recognizer = p }
}

// WithSynthesizer injects a synthesizer instead of building the configured
// chain. Cache, rate limit, and fallback decorators are skipped.
func WithSynthesizer(s speak.Synthesizer) Option {
	return func(a *App) { a.synth = s }
}

// WithSink injects an output sink instead of creating one from config.
func WithSink(s output.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithRecorder injects an audit recorder instead of creating one from
// config.
func WithRecorder(r audit.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// New creates an App by wiring all subsystems together: phrasebook, audit
// trail, recognition provider, synthesizer chain, output sink, and the
// admin HTTP server. Initialisation is synchronous; a returned error means
// nothing is left running.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	a := &App{
		cfg:     cfg,
		log:     slog.Default(),
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = DefaultRegistry()
	}

	if err := a.initPhrasebook(); err != nil {
		return nil, fmt.Errorf("app: init phrasebook: %w", err)
	}
	if err := a.initAudit(ctx); err != nil {
		return nil, fmt.Errorf("app: init audit: %w", err)
	}
	if err := a.initBackends(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init backends: %w", err)
	}

	dispatcher, err := session.NewDispatcher(a.synth, a.sink,
		session.WithVoice(a.voice),
		session.WithMetrics(a.metrics),
	)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.dispatcher = dispatcher

	a.initAdmin()
	return a, nil
}

// initPhrasebook loads the immutable phrase table and builds the advisory
// suggester on top of it.
func (a *App) initPhrasebook() error {
	table, err := phrasebook.Load(a.cfg.Phrasebook)
	if err != nil {
		return err
	}
	a.table = table
	a.suggester = phrasebook.NewSuggester(table)
	a.log.Info("phrasebook loaded",
		"path", a.cfg.Phrasebook,
		"phrases", table.Len(),
		"variants", table.VariantCount(),
	)
	return nil
}

// initAudit picks the decision recorder: postgres plus log when a DSN is
// configured, log only otherwise.
func (a *App) initAudit(ctx context.Context) error {
	if a.recorder != nil {
		return nil
	}
	dsn := a.cfg.Audit.PostgresDSN
	if dsn == "" {
		a.recorder = audit.NewLogRecorder(a.log)
		return nil
	}

	store, err := audit.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.auditStore = store
	a.closers = append(a.closers, store.Close)
	a.recorder = audit.MultiRecorder{audit.NewLogRecorder(a.log), store}
	a.log.Info("audit trail persists to postgres")
	return nil
}

// initBackends creates the recognizer, synthesizer chain, and output sink
// for every slot that was not injected. The sink is always owned by the
// App and closed during Shutdown.
func (a *App) initBackends(ctx context.Context) error {
	if a.recognizer == nil {
		rec, err := a.registry.CreateRecognizer(a.cfg.Recognizer)
		if err != nil {
			return fmt.Errorf("create recognizer %q: %w", a.cfg.Recognizer.Name, err)
		}
		a.recognizer = rec
		if c, ok := rec.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
		a.log.Info("recognizer ready", "provider", a.cfg.Recognizer.Name)
	}

	if a.sink == nil {
		sink, err := a.registry.CreateOutput(a.cfg.Output)
		if err != nil {
			return fmt.Errorf("create output %q: %w", a.cfg.Output.Name, err)
		}
		a.sink = sink
		a.log.Info("output ready", "provider", a.cfg.Output.Name)
	}
	a.closers = append(a.closers, a.sink.Close)

	if a.synth == nil {
		synth, voice, err := BuildSynthesizer(ctx, a.cfg, a.registry)
		if err != nil {
			return err
		}
		a.synth = synth
		a.voice = voice
	} else {
		a.voice = resolveVoice(ctx, a.synth, "injected", a.cfg.Voice)
	}
	return nil
}

// initAdmin builds the admin HTTP server when an address is configured.
// It serves liveness and readiness probes plus the Prometheus scrape
// endpoint, with request metrics on everything.
func (a *App) initAdmin() {
	addr := a.cfg.Server.AdminAddr
	if addr == "" {
		return
	}

	checkers := []health.Checker{{
		Name: "phrasebook",
		Check: func(context.Context) error {
			if a.table == nil {
				return errors.New("phrasebook not loaded")
			}
			return nil
		},
	}}
	if a.auditStore != nil {
		checkers = append(checkers, health.Checker{Name: "audit", Check: a.auditStore.Ping})
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.admin = &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// BuildSynthesizer assembles the synthesizer chain from config: one backend
// per entry, wrapped in a circuit-breaking fallback group when there is more
// than one, then the optional rate limiter and clip cache. Each backend's
// voice is resolved against its own catalogue since voice IDs are
// backend-specific. The returned voice is the primary's.
func BuildSynthesizer(ctx context.Context, cfg *config.Config, reg *config.Registry) (speak.Synthesizer, speak.Voice, error) {
	entries := cfg.Synthesizers
	if len(entries) == 0 {
		return nil, speak.Voice{}, errors.New("app: no synthesizers configured")
	}

	backends := make([]speak.Synthesizer, len(entries))
	voices := make([]speak.Voice, len(entries))
	for i, entry := range entries {
		s, err := reg.CreateSynthesizer(entry.ProviderEntry)
		if err != nil {
			return nil, speak.Voice{}, fmt.Errorf("create synthesizer %q: %w", entry.Name, err)
		}
		pref := entry.Voice
		if pref == "" {
			pref = cfg.Voice
		}
		backends[i] = s
		voices[i] = resolveVoice(ctx, s, entry.Name, pref)
	}

	synth := backends[0]
	if len(backends) > 1 {
		chain := resilience.NewSynthFallback(backends[0], entries[0].Name, voices[0], resilience.FallbackConfig{})
		for i := 1; i < len(backends); i++ {
			chain.AddFallback(entries[i].Name, backends[i], voices[i])
		}
		synth = chain
		slog.Info("synthesizer fallback chain ready",
			"primary", entries[0].Name, "fallbacks", len(backends)-1)
	}

	// Limiter inside the cache: cache hits skip the token bucket, which
	// only exists to protect the backends.
	if cfg.RateLimit.RPS > 0 {
		synth = speak.NewLimiter(synth, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	if cfg.Cache.Enabled {
		ttl := cfg.Cache.TTL.Std()
		synth = speak.NewCache(synth, ttl, ttl)
	}
	return synth, voices[0], nil
}

// resolveVoice fetches the backend's voice catalogue and picks the first
// voice whose name contains pref. Failures fall back to the zero voice,
// which asks the backend for its default.
func resolveVoice(ctx context.Context, s speak.Synthesizer, name, pref string) speak.Voice {
	vctx, cancel := context.WithTimeout(ctx, voiceListTimeout)
	defer cancel()

	voices, err := s.ListVoices(vctx)
	if err != nil {
		slog.Warn("voice catalogue unavailable, using backend default", "synthesizer", name, "err", err)
		return speak.Voice{}
	}
	v, ok := speak.SelectVoice(voices, pref)
	if !ok {
		slog.Warn("backend offers no voices, using its default", "synthesizer", name)
		return speak.Voice{}
	}
	slog.Info("voice selected", "synthesizer", name, "voice", v.Name, "id", v.ID)
	return v
}

// Run opens the configured input, starts one recognition stream, and drives
// the session loop until the input is exhausted or ctx is cancelled. The
// admin server runs for the duration of the session.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if a.admin != nil {
		admin := a.admin
		g.Go(func() error {
			a.log.Info("admin server listening", "addr", admin.Addr)
			if err := admin.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shCancel()
			return admin.Shutdown(shCtx)
		})
	}

	in, err := openInput(a.cfg.Input)
	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	a.log.Info("input opened",
		"source", in.name,
		"sample_rate", in.format.SampleRate,
		"channels", in.format.Channels,
		"duration", in.duration(),
		"realtime", in.realtime,
	)

	stream, err := a.recognizer.StartStream(gctx, recognize.StreamConfig{
		Format:   in.format,
		Language: a.cfg.Recognizer.StringOption("language", ""),
	})
	if err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("app: start recognition stream: %w", err)
	}

	loop, err := session.New(session.Config{
		Stream:     stream,
		Table:      a.table,
		Dispatcher: a.dispatcher,
		Suggester:  a.suggester,
		Recorder:   a.recorder,
		Metrics:    a.metrics,
		Logger:     a.log,
	})
	if err != nil {
		_ = stream.Close()
		cancel()
		_ = g.Wait()
		return err
	}

	g.Go(func() error {
		// The loop ending, cleanly or not, ends the admin server too.
		defer cancel()
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return in.pump(gctx, a.log, stream)
	})

	return g.Wait()
}

// Shutdown tears down all subsystems in reverse-init order. It respects
// the context deadline: if ctx expires before all closers finish, the
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers immediately, for New's error paths.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
