package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	rentl "github.com/trevorWieland/rentl-sub001"
)

var resumeToken string

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Continue a run paused on approvals",
	Long: `Apply resolved decisions and continue a paused run. Completed
phase work is not redone; only the paused phase finishes and the
pipeline proceeds from there. If unresolved decisions remain, the run
pauses again.

The run is named either by its ID or by a signed resume token from a
pending decision.

Examples:
  # Resume by run ID
  rentl resume 6b1e9c2a-4f0d-4c1e-9a7b-2d8f0e3c5a61

  # Resume by token (pasted from "rentl run" output)
  rentl resume --token eyJhbGciOiJFZERTQSIs...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeToken, "token", "", "signed resume token instead of a run ID")
	resumeCmd.Flags().BoolVar(&waitApprovals, "wait", false, "block on pending approvals instead of pausing the run")
}

func runResume(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (resumeToken == "") {
		return fmt.Errorf("exactly one of a run ID or --token is required")
	}

	app, err := rentl.New(
		rentl.WithProjectFile(projectFile),
		rentl.WithVersion(version),
		rentl.WithWaitApprovals(waitApprovals),
	)
	if err != nil {
		return err
	}
	defer closeApp(app)

	if resumeToken != "" {
		res, err := app.ResumeToken(cmd.Context(), resumeToken)
		return report(res, err)
	}

	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}
	res, err := app.Resume(cmd.Context(), runID)
	return report(res, err)
}
