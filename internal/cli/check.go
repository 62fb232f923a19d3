package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vhfnav/readback/internal/phrasebook"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and phrasebook without starting",
	Long: `Check loads the configuration file and the phrasebook it references,
running the same validation run performs at startup: strict YAML decoding,
provider name checks, and an all-or-nothing phrasebook load.

The exit status is non-zero when anything fails, so check works as a CI or
pre-deploy gate. No network connections are made.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := phrasebook.Load(cfg.Phrasebook)
	if err != nil {
		return err
	}

	fmt.Printf("config     %s: OK\n", cfgFile)
	fmt.Printf("phrasebook %s: OK (%d phrases, %d variants)\n",
		cfg.Phrasebook, table.Len(), table.VariantCount())

	for _, sv := range table.ShortVariants() {
		fmt.Printf("  warning: phrase %q variant %q is short enough to match almost anything\n",
			sv.PhraseID, sv.Variant)
	}
	return nil
}
