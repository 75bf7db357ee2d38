package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trevorWieland/rentl-sub001/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show pipeline runs and their progress",
	Long: `Without arguments, list all recorded runs. With a run ID, show
that run's per-phase progress, pending decisions, and artifacts.

Examples:
  # List all runs
  rentl status

  # Inspect one run
  rentl status 6b1e9c2a-4f0d-4c1e-9a7b-2d8f0e3c5a61`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, release, err := openRunStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	if len(args) == 0 {
		index, err := store.ListRunIndex(ctx)
		if err != nil {
			return err
		}
		if len(index) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tPROJECT\tSTATUS\tPHASE\tSTARTED\tUPDATED")
		for _, e := range index {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.RunID, e.Project, e.Status, e.CurrentPhase,
				e.StartedAt.Local().Format(time.DateTime),
				e.UpdatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	}

	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}
	state, err := store.LoadRunState(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run:     %s\n", state.RunID)
	fmt.Printf("Project: %s\n", state.Project)
	fmt.Printf("Status:  %s\n", state.Status)
	if state.CurrentPhase != "" {
		fmt.Printf("Phase:   %s\n", state.CurrentPhase)
	}
	summary := state.Progress.Summary
	if summary.PercentComplete != nil {
		fmt.Printf("Done:    %.1f%% (%s)\n", *summary.PercentComplete, summary.PercentMode)
	}
	if state.LastError != "" {
		fmt.Printf("Error:   %s\n", state.LastError)
	}

	if len(state.Progress.Phases) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "PHASE\tSTATUS\tDONE")
		for _, pp := range state.Progress.Phases {
			done := "-"
			if pp.Summary.PercentComplete != nil {
				done = fmt.Sprintf("%.1f%%", *pp.Summary.PercentComplete)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", pp.Phase, pp.Status, done)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(state.PendingDecisions) > 0 {
		fmt.Printf("\nPending decisions: %d (see \"rentl approvals list --run %s\")\n",
			len(state.PendingDecisions), state.RunID)
	}
	if len(state.Artifacts) > 0 {
		fmt.Println("\nArtifacts:")
		for _, a := range state.Artifacts {
			fmt.Printf("  %s/%s (%s)\n", a.Phase, a.Name, a.Kind)
		}
	}
	return nil
}
