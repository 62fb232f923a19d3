package app

import (
	"errors"

	"github.com/vhfnav/readback/internal/config"
	"github.com/vhfnav/readback/pkg/output"
	discordsink "github.com/vhfnav/readback/pkg/output/discord"
	"github.com/vhfnav/readback/pkg/output/wavdir"
	"github.com/vhfnav/readback/pkg/recognize"
	"github.com/vhfnav/readback/pkg/recognize/deepgram"
	"github.com/vhfnav/readback/pkg/recognize/whisper"
	"github.com/vhfnav/readback/pkg/speak"
	"github.com/vhfnav/readback/pkg/speak/coqui"
	"github.com/vhfnav/readback/pkg/speak/openai"
)

// DefaultRegistry returns a provider registry with every built-in factory
// wired in. Each factory maps a config.ProviderEntry onto the constructor
// of the real implementation package.
func DefaultRegistry() *config.Registry {
	reg := config.NewRegistry()

	// ---- recognizers ----------------------------------------------------

	reg.RegisterRecognizer("whisper", func(entry config.ProviderEntry) (recognize.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if ms := entry.IntOption("silence_threshold_ms", 0); ms > 0 {
			opts = append(opts, whisper.WithSilenceThresholdMs(ms))
		}
		if ms := entry.IntOption("max_buffer_ms", 0); ms > 0 {
			opts = append(opts, whisper.WithMaxBufferDurationMs(ms))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterRecognizer("whisper-native", func(entry config.ProviderEntry) (recognize.Provider, error) {
		// The ggml file path rides in base_url, with model as a fallback
		// for configs that read more naturally that way.
		modelPath := entry.BaseURL
		if modelPath == "" {
			modelPath = entry.Model
		}
		var opts []whisper.NativeOption
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if ms := entry.IntOption("silence_threshold_ms", 0); ms > 0 {
			opts = append(opts, whisper.WithNativeSilenceThresholdMs(ms))
		}
		if ms := entry.IntOption("max_buffer_ms", 0); ms > 0 {
			opts = append(opts, whisper.WithNativeMaxBufferDurationMs(ms))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterRecognizer("deepgram", func(entry config.ProviderEntry) (recognize.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if kw := entry.StringSliceOption("keywords"); len(kw) > 0 {
			opts = append(opts, deepgram.WithKeywords(kw...))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ---- synthesizers ---------------------------------------------------

	reg.RegisterSynthesizer("coqui", func(entry config.ProviderEntry) (speak.Synthesizer, error) {
		var opts []coqui.Option
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := entry.StringOption("api_mode", ""); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterSynthesizer("openai", func(entry config.ProviderEntry) (speak.Synthesizer, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, openai.WithModel(entry.Model))
		}
		if instr := entry.StringOption("instructions", ""); instr != "" {
			opts = append(opts, openai.WithInstructions(instr))
		}
		return openai.New(entry.APIKey, opts...)
	})

	// ---- output sinks ---------------------------------------------------

	reg.RegisterOutput("wavdir", func(entry config.ProviderEntry) (output.Sink, error) {
		dir := entry.StringOption("dir", "")
		var opts []wavdir.Option
		if prefix := entry.StringOption("prefix", ""); prefix != "" {
			opts = append(opts, wavdir.WithPrefix(prefix))
		}
		return wavdir.New(dir, opts...)
	})

	reg.RegisterOutput("discord", func(entry config.ProviderEntry) (output.Sink, error) {
		guildID := entry.StringOption("guild_id", "")
		channelID := entry.StringOption("channel_id", "")
		if entry.APIKey == "" || guildID == "" || channelID == "" {
			return nil, errors.New("app: discord output needs api_key, guild_id and channel_id")
		}
		return discordsink.Connect(entry.APIKey, guildID, channelID)
	})

	return reg
}
