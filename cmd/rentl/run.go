package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	rentl "github.com/trevorWieland/rentl-sub001"
)

var waitApprovals bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the localization pipeline",
	Long: `Execute a fresh pipeline run for the configured project.

The run walks the enabled phases in order. Under the standard approval
policy a run that would overwrite human work pauses and prints its
pending decisions; rule on them with "rentl approvals resolve" and
continue with "rentl resume". A paused run exits zero so scripts can
tell "needs review" from "failed".

Examples:
  # Run the project file in the working directory
  rentl run

  # Run a specific project and block until approvals are resolved
  rentl run --project game/rentl.yaml --wait`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&waitApprovals, "wait", false, "block on pending approvals instead of pausing the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	app, err := rentl.New(
		rentl.WithProjectFile(projectFile),
		rentl.WithVersion(version),
		rentl.WithWaitApprovals(waitApprovals),
	)
	if err != nil {
		return err
	}
	defer closeApp(app)

	res, err := app.Run(cmd.Context())
	return report(res, err)
}

func closeApp(app *rentl.App) {
	if err := app.Close(context.Background()); err != nil {
		slog.Warn("close failed", "error", err)
	}
}

// report prints the run outcome. A pause for approval is a normal
// outcome, not a CLI failure.
func report(res *rentl.RunResult, err error) error {
	if res != nil {
		printRunResult(res)
	}
	if errors.Is(err, rentl.ErrAwaitingApproval) && res != nil {
		printPendingApprovals(res)
		return nil
	}
	return err
}

func printRunResult(res *rentl.RunResult) {
	fmt.Printf("Run:     %s\n", res.RunID)
	fmt.Printf("Status:  %s\n", res.Status)
	if res.CurrentPhase != "" {
		fmt.Printf("Phase:   %s\n", res.CurrentPhase)
	}
	if res.PercentComplete != nil {
		fmt.Printf("Done:    %.1f%% (%s)\n", *res.PercentComplete, res.PercentMode)
	}
	if res.ETASeconds != nil {
		fmt.Printf("ETA:     %s\n", (time.Duration(*res.ETASeconds) * time.Second).Round(time.Second))
	}
	if res.CompletedAt != nil {
		fmt.Printf("Took:    %s\n", res.CompletedAt.Sub(res.StartedAt).Round(time.Millisecond))
	}
	if res.Error != "" {
		fmt.Printf("Error:   %s\n", res.Error)
	}
}

func printPendingApprovals(res *rentl.RunResult) {
	fmt.Printf("\nRun paused on %d pending decision(s):\n\n", len(res.PendingApprovals))
	for _, d := range res.PendingApprovals {
		fmt.Printf("  %s  %s/%s", d.ID, d.Phase, d.Operation)
		if d.LineID != "" {
			fmt.Printf("  line %s", d.LineID)
		}
		fmt.Println()
		if d.CurrentValue != "" {
			fmt.Printf("    current:  %q (%s)\n", d.CurrentValue, d.CurrentOrigin)
		}
		fmt.Printf("    proposed: %q (%s)\n", d.ProposedValue, d.ProposedOrigin)
	}
	fmt.Printf("\nResolve with: rentl approvals resolve <decision-id> --approve|--reject\n")
	fmt.Printf("Then:         rentl resume %s\n", res.RunID)
}
