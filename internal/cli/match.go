package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vhfnav/readback/internal/phrasebook"
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match [text]...",
	Short: "Run recognizer hypotheses through the phrasebook matcher",
	Long: `Match feeds hypotheses through the same matcher the live session uses
and prints the outcome. Useful when tuning phrasebook variants against real
recognizer output. With no arguments it reads one hypothesis per line from
stdin, so a transcript file can be replayed in one go.

On a miss the nearest phrase by phonetic distance is printed as a hint; the
live matcher never acts on it.

Example:
  readback match "cleared to land runway two seven"
  readback match going around
  readback match < hypotheses.txt`,
	Args: cobra.ArbitraryArgs,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := phrasebook.Load(cfg.Phrasebook)
	if err != nil {
		return err
	}

	suggester := phrasebook.NewSuggester(table)

	if len(args) > 0 {
		printDecision(table, suggester, strings.Join(args, " "))
		return nil
	}

	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		fragment := strings.TrimSpace(sc.Text())
		if fragment == "" {
			continue
		}
		fmt.Printf("> %s\n", fragment)
		printDecision(table, suggester, fragment)
	}
	return sc.Err()
}

func printDecision(table *phrasebook.Table, suggester *phrasebook.Suggester, fragment string) {
	if m, ok := table.Match(fragment); ok {
		fmt.Printf("matched %s via variant %q\n", m.PhraseID, m.Variant)
		fmt.Printf("canonical: %s\n", m.Canonical)
		return
	}

	fmt.Println("no match")
	if s, ok := suggester.Suggest(fragment); ok {
		fmt.Printf("closest phrase: %s (score %.2f), consider adding a variant\n", s.PhraseID, s.Score)
	}
}
