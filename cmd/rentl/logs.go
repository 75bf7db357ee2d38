package main

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trevorWieland/rentl-sub001/internal/config"
	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/storage"
)

var (
	logsLevel string
	logsTail  int
)

var logsCmd = &cobra.Command{
	Use:   "logs <run-id>",
	Short: "Print a run's log",
	Long: `Print the structured log the orchestrator appended while executing a
run: phase transitions, dispatched units, approval pauses, failures.

Examples:
  # Full log of a run
  rentl logs 6b1e9c2a-4f0d-4c1e-9a7b-2d8f0e3c5a61

  # Only warnings and errors, last 50 entries
  rentl logs 6b1e9c2a-4f0d-4c1e-9a7b-2d8f0e3c5a61 --level warn --tail 50`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "minimum level to show (debug, info, warn, error)")
	logsCmd.Flags().IntVar(&logsTail, "tail", 0, "show only the last N entries")
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	var minLevel slog.Level
	filtered := logsLevel != ""
	if filtered {
		if err := minLevel.UnmarshalText([]byte(logsLevel)); err != nil {
			return fmt.Errorf("invalid level %q: %w", logsLevel, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, release, err := openRunStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	reader, ok := store.(storage.LogReader)
	if !ok {
		return fmt.Errorf("run store does not support reading logs back")
	}

	// An unknown run should fail loudly; an empty log on a known run is
	// just an empty log.
	if _, err := store.LoadRunState(ctx, runID); err != nil {
		return err
	}
	entries, err := reader.ReadLog(ctx, runID)
	if err != nil {
		return err
	}

	if filtered {
		kept := entries[:0]
		for _, e := range entries {
			var l slog.Level
			if err := l.UnmarshalText([]byte(e.Level)); err == nil && l < minLevel {
				continue
			}
			kept = append(kept, e)
		}
		entries = kept
	}
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	if len(entries) == 0 {
		fmt.Println("No log entries recorded.")
		return nil
	}
	for _, e := range entries {
		fmt.Println(formatLogEntry(e))
	}
	return nil
}

// formatLogEntry renders one entry as a single line:
//
//	2026-08-25 15:04:05 INFO  [translate] phase started lines=4
func formatLogEntry(e model.RunLogEntry) string {
	var b strings.Builder
	b.WriteString(e.Time.Local().Format(time.DateTime))
	fmt.Fprintf(&b, " %-5s", e.Level)
	if e.Phase != "" {
		fmt.Fprintf(&b, " [%s]", e.Phase)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	return b.String()
}
