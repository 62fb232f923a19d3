package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"recognizer":  {"whisper", "whisper-native", "deepgram"},
	"synthesizer": {"coqui", "openai"},
	"output":      {"wavdir", "discord"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Unknown keys are rejected. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields that have documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Input.SampleRate == 0 {
		cfg.Input.SampleRate = 16000
	}
	if cfg.Input.Channels == 0 {
		cfg.Input.Channels = 1
	}
	if cfg.RateLimit.RPS > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 1
	}
}

// Validate checks that cfg contains a coherent set of values, including
// that referenced files exist. It returns a joined error listing all
// validation failures found; the process must not start on any of them.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Phrasebook == "" {
		errs = append(errs, errors.New("phrasebook is required"))
	} else if err := checkFile(cfg.Phrasebook); err != nil {
		errs = append(errs, fmt.Errorf("phrasebook: %w", err))
	}

	switch {
	case !cfg.Input.Source.IsValid():
		errs = append(errs, fmt.Errorf("input.source %q is invalid; valid values: file, stdin", cfg.Input.Source))
	case cfg.Input.Source == InputFile:
		if cfg.Input.Path == "" {
			errs = append(errs, errors.New("input.path is required when input.source is \"file\""))
		} else if err := checkFile(cfg.Input.Path); err != nil {
			errs = append(errs, fmt.Errorf("input.path: %w", err))
		}
	}
	if cfg.Input.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("input.sample_rate %d must not be negative", cfg.Input.SampleRate))
	}
	if cfg.Input.Channels < 0 {
		errs = append(errs, fmt.Errorf("input.channels %d must not be negative", cfg.Input.Channels))
	}

	if cfg.Recognizer.Name == "" {
		errs = append(errs, errors.New("recognizer.name is required"))
	}
	validateProviderName("recognizer", cfg.Recognizer.Name)

	if len(cfg.Synthesizers) == 0 {
		errs = append(errs, errors.New("at least one synthesizer is required"))
	}
	for i, s := range cfg.Synthesizers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("synthesizers[%d].name is required", i))
		}
		validateProviderName("synthesizer", s.Name)
	}

	if cfg.Output.Name == "" {
		errs = append(errs, errors.New("output.name is required"))
	}
	validateProviderName("output", cfg.Output.Name)

	if cfg.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if cfg.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.rps %.2f must not be negative", cfg.RateLimit.RPS))
	}
	if cfg.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.burst %d must not be negative", cfg.RateLimit.Burst))
	}

	return errors.Join(errs...)
}

// checkFile verifies that path exists and is a regular file.
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", path)
	}
	return nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
