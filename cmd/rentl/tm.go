package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trevorWieland/rentl-sub001/internal/config"
	"github.com/trevorWieland/rentl-sub001/internal/ingest"
	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/tm"
)

var tmOrigin string

var tmCmd = &cobra.Command{
	Use:   "tm",
	Short: "Maintain the translation memory",
}

var tmImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Seed the memory from a translated dialogue file",
	Long: `Read a dialogue file (csv, jsonl, or txt by extension) and store
every line that carries a translation. Language pair comes from the
project file. Existing human entries are never replaced by an import
with a lower-trust origin.

Examples:
  # Load a previous release's script as human translations
  rentl tm import archive/v1-final.csv

  # Load machine output without protecting it
  rentl tm import draft.csv --origin base_model`,
	Args: cobra.ExactArgs(1),
	RunE: runTMImport,
}

var tmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show translation memory counts",
	Args:  cobra.NoArgs,
	RunE:  runTMStats,
}

func init() {
	tmImportCmd.Flags().StringVar(&tmOrigin, "origin", model.OriginHuman, "origin recorded on imported entries")
	tmCmd.AddCommand(tmImportCmd)
	tmCmd.AddCommand(tmStatsCmd)
}

func openTM() (*tm.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return tm.Open(cfg.TMPath)
}

func runTMImport(cmd *cobra.Command, args []string) error {
	project, err := config.LoadProject(projectFile)
	if err != nil {
		return err
	}
	lines, err := ingest.LoadSource(args[0])
	if err != nil {
		return err
	}

	memory, err := openTM()
	if err != nil {
		return err
	}
	defer memory.Close()

	srcLang := project.SourceLanguage.String()
	tgtLang := project.TargetLanguage.String()

	var imported, untranslated, protected int
	for _, line := range lines {
		if line.Translation.Empty() {
			untranslated++
			continue
		}
		err := memory.Put(cmd.Context(), tm.Entry{
			SourceLang: srcLang,
			TargetLang: tgtLang,
			SourceText: line.Source,
			TargetText: line.Translation.Value,
			Origin:     tmOrigin,
		})
		switch {
		case errors.Is(err, tm.ErrProtected):
			protected++
		case err != nil:
			return fmt.Errorf("line %s: %w", line.ID, err)
		default:
			imported++
		}
	}

	fmt.Printf("Imported %d entries (%s -> %s, origin %s).\n", imported, srcLang, tgtLang, tmOrigin)
	if untranslated > 0 {
		fmt.Printf("Skipped %d untranslated line(s).\n", untranslated)
	}
	if protected > 0 {
		fmt.Printf("Kept %d protected human entries untouched.\n", protected)
	}
	return nil
}

func runTMStats(cmd *cobra.Command, args []string) error {
	memory, err := openTM()
	if err != nil {
		return err
	}
	defer memory.Close()

	stats, err := memory.Stats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Entries: %d\n", stats.TotalEntries)
	fmt.Printf("Human:   %d\n", stats.HumanEntries)
	fmt.Printf("Uses:    %d\n", stats.TotalUses)
	return nil
}
