// Package cli implements the readback command line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vhfnav/readback/internal/config"
)

const version = "0.1.0"

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "readback",
	Short: "Phrase-normalizing readback for procedural radio traffic",
	Long: `readback listens to a speech recognizer, matches every hypothesis
against a fixed phrasebook of canonical phrases, and re-voices each match as
clean synthesized audio.

It never free-forms: a fragment either maps onto a canonical phrase through
exact containment or it is dropped and recorded for review. That makes
readback suited to procedural radio traffic, where the set of valid phrases
is known ahead of time.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("readback v" + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the YAML configuration file")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and validates the file named by the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", cfgFile)
		}
		return nil, err
	}
	return cfg, nil
}
