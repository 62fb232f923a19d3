package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vhfnav/readback/internal/app"
	"github.com/vhfnav/readback/pkg/speak"
)

var voicesTimeout time.Duration

// voicesCmd represents the voices command
var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices offered by the configured synthesizers",
	Long: `Voices connects to every configured synthesizer backend, fetches its voice
catalogue, and marks the voice the current preference would select.

Example:
  readback voices --config configs/example.yaml`,
	Args: cobra.NoArgs,
	RunE: runVoices,
}

func init() {
	rootCmd.AddCommand(voicesCmd)

	voicesCmd.Flags().DurationVar(&voicesTimeout, "timeout", 30*time.Second, "per-backend catalogue fetch timeout")
}

func runVoices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := app.DefaultRegistry()
	for _, entry := range cfg.Synthesizers {
		synth, err := reg.CreateSynthesizer(entry.ProviderEntry)
		if err != nil {
			fmt.Printf("%s: %v\n", entry.Name, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), voicesTimeout)
		voices, err := synth.ListVoices(ctx)
		cancel()
		if err != nil {
			fmt.Printf("%s: list voices: %v\n", entry.Name, err)
			continue
		}

		pref := entry.Voice
		if pref == "" {
			pref = cfg.Voice
		}
		selected, _ := speak.SelectVoice(voices, pref)

		fmt.Printf("%s (%d voices):\n", entry.Name, len(voices))
		for _, v := range voices {
			marker := " "
			if v.ID == selected.ID {
				marker = "*"
			}
			fmt.Printf("  %s %-24s %-28s %s\n", marker, v.ID, v.Name, v.Language)
		}
	}
	return nil
}
