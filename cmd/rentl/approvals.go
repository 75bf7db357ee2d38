package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/config"
)

var (
	approvalsRun     string
	approvalsApprove bool
	approvalsReject  bool
	approvalsBy      string
	approvalsNote    string
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List and resolve pending approval decisions",
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved decisions, oldest first",
	Long: `List the approval decisions paused runs are waiting on.

Examples:
  # All pending decisions
  rentl approvals list

  # Only those blocking one run
  rentl approvals list --run 6b1e9c2a-4f0d-4c1e-9a7b-2d8f0e3c5a61`,
	Args: cobra.NoArgs,
	RunE: runApprovalsList,
}

var approvalsResolveCmd = &cobra.Command{
	Use:   "resolve <decision-id>",
	Short: "Record a verdict on a pending decision",
	Long: `Approve or reject one pending decision. Approving lets the
proposed value replace the current one when the run resumes; rejecting
keeps the current value. A decision can be resolved once.

Examples:
  # Accept the proposed overwrite
  rentl approvals resolve 0f40a5c3-... --approve --by mika

  # Keep the human translation
  rentl approvals resolve 0f40a5c3-... --reject --by mika --note "the human line stands"`,
	Args: cobra.ExactArgs(1),
	RunE: runApprovalsResolve,
}

func init() {
	approvalsListCmd.Flags().StringVar(&approvalsRun, "run", "", "only decisions for this run ID")
	approvalsResolveCmd.Flags().BoolVar(&approvalsApprove, "approve", false, "accept the proposed value")
	approvalsResolveCmd.Flags().BoolVar(&approvalsReject, "reject", false, "keep the current value")
	approvalsResolveCmd.Flags().StringVar(&approvalsBy, "by", os.Getenv("USER"), "who is resolving the decision")
	approvalsResolveCmd.Flags().StringVar(&approvalsNote, "note", "", "optional note recorded with the verdict")
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsResolveCmd)
}

func openPending() (approval.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return approval.NewFSStore(cfg.PendingDir)
}

func runApprovalsList(cmd *cobra.Command, args []string) error {
	pending, err := openPending()
	if err != nil {
		return err
	}

	runFilter := uuid.Nil
	if approvalsRun != "" {
		runFilter, err = uuid.Parse(approvalsRun)
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", approvalsRun, err)
		}
	}

	decisions, err := pending.ListPending(cmd.Context(), runFilter)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		fmt.Println("No pending decisions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "DECISION\tRUN\tPHASE\tOPERATION\tLINE\tAGE")
	for _, d := range decisions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.RunID, d.Phase, d.Operation, d.LineID,
			time.Since(d.CreatedAt).Round(time.Second))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d decision(s). Resolve with: rentl approvals resolve <decision-id> --approve|--reject\n", len(decisions))
	return nil
}

func runApprovalsResolve(cmd *cobra.Command, args []string) error {
	if approvalsApprove == approvalsReject {
		return fmt.Errorf("exactly one of --approve or --reject is required")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid decision id %q: %w", args[0], err)
	}

	pending, err := openPending()
	if err != nil {
		return err
	}

	res := approval.ResolutionApproved
	if approvalsReject {
		res = approval.ResolutionRejected
	}
	d, err := pending.Resolve(cmd.Context(), id, res, approvalsBy, approvalsNote)
	if err != nil {
		return err
	}

	fmt.Printf("Decision %s %s.\n", d.ID, d.Resolution)
	fmt.Printf("Apply it with: rentl resume %s\n", d.RunID)
	return nil
}
