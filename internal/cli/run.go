package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vhfnav/readback/internal/app"
	"github.com/vhfnav/readback/internal/config"
	"github.com/vhfnav/readback/internal/observe"
)

var (
	inputPath string
	adminAddr string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the readback pipeline",
	Long: `Run streams the configured audio input into the recognizer, matches every
hypothesis fragment against the phrasebook, and re-voices each match through
the synthesizer chain into the output sink.

The process stops when the input is exhausted or on SIGINT/SIGTERM.

Example:
  readback run --config configs/example.yaml
  readback run --input tower_recording.wav`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&inputPath, "input", "", "WAV file to process (overrides input.source and input.path)")
	runCmd.Flags().StringVar(&adminAddr, "admin-addr", "", "metrics/health listen address (overrides server.admin_addr)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if inputPath != "" {
		cfg.Input.Source = config.InputFile
		cfg.Input.Path = inputPath
	}
	if adminAddr != "" {
		cfg.Server.AdminAddr = adminAddr
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("readback starting",
		"version", version,
		"config", cfgFile,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "readback",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// Neither the config nor the phrasebook can be swapped under a running
	// session, so an edit on disk only logs a restart hint.
	watchers := watchForEdits(cfgFile, cfg.Phrasebook)
	defer func() {
		for _, w := range watchers {
			w.Stop()
		}
	}()

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	slog.Info("readback ready, press Ctrl+C to stop")

	runErr := application.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		if runErr == nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		} else {
			slog.Warn("shutdown error", "err", err)
		}
	}
	if runErr == nil {
		slog.Info("goodbye")
	}
	return runErr
}

// watchForEdits starts a change watcher per file and returns the started
// watchers. Files that cannot be watched are logged and skipped.
func watchForEdits(paths ...string) []*config.Watcher {
	var watchers []*config.Watcher
	for _, path := range paths {
		if path == "" {
			continue
		}
		w, err := config.NewWatcher(path, func(changed string) {
			slog.Info("file changed on disk, restart to apply", "path", changed)
		})
		if err != nil {
			slog.Warn("cannot watch file", "path", path, "err", err)
			continue
		}
		watchers = append(watchers, w)
	}
	return watchers
}

// ---- Startup summary ----

func printStartupSummary(cfg *config.Config) {
	fmt.Println("+---------------------------------------------+")
	fmt.Println("|         readback - startup summary          |")
	fmt.Println("+---------------------------------------------+")
	printEntry("Phrasebook", cfg.Phrasebook)
	input := string(cfg.Input.Source)
	if cfg.Input.Source == config.InputFile {
		input = cfg.Input.Path
	}
	printEntry("Input", input)
	printEntry("Recognizer", providerLabel(cfg.Recognizer))
	for i, s := range cfg.Synthesizers {
		label := "Synthesizer"
		if i > 0 {
			label = fmt.Sprintf("Fallback %d", i)
		}
		printEntry(label, providerLabel(s.ProviderEntry))
	}
	printEntry("Output", providerLabel(cfg.Output))
	if cfg.Audit.PostgresDSN != "" {
		printEntry("Audit", "postgres")
	} else {
		printEntry("Audit", "log only")
	}
	if cfg.Server.AdminAddr != "" {
		printEntry("Admin", cfg.Server.AdminAddr)
	}
	fmt.Println("+---------------------------------------------+")
}

func printEntry(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 27 {
		value = value[:24] + "..."
	}
	fmt.Printf("|  %-12s : %-27s |\n", kind, value)
}

func providerLabel(e config.ProviderEntry) string {
	if e.Name == "" {
		return ""
	}
	if e.Model != "" {
		return e.Name + " / " + e.Model
	}
	return e.Name
}

// ---- Logger ----

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
