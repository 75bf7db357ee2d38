package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// review-approvals — walks the agent through ruling on pending decisions.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("review-approvals",
			mcplib.WithPromptDescription("Review and resolve the approval decisions blocking a run"),
			mcplib.WithArgument("run_id",
				mcplib.ArgumentDescription("Scope the review to one run; reviews all pending decisions when omitted"),
			),
		),
		s.handleReviewApprovalsPrompt,
	)

	// run-report — asks the agent to produce a short status report for a human.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("run-report",
			mcplib.WithPromptDescription("Summarize a run's progress and blockers for a human reader"),
			mcplib.WithArgument("run_id",
				mcplib.ArgumentDescription("The run to report on; uses the most recent run when omitted"),
			),
		),
		s.handleRunReportPrompt,
	)

	// operator-setup — system prompt snippet explaining the rentl operator workflow.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("operator-setup",
			mcplib.WithPromptDescription("System prompt snippet explaining the rentl run-watching and approval workflow"),
		),
		s.handleOperatorSetupPrompt,
	)
}

func (s *Server) handleReviewApprovalsPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	runID := request.Params.Arguments["run_id"]

	scope := "across all runs"
	listCall := "rentl_list_pending_approvals with no arguments"
	if runID != "" {
		scope = fmt.Sprintf("for run %s", runID)
		listCall = fmt.Sprintf("rentl_list_pending_approvals with run_id=%q", runID)
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Review pending approval decisions %s", scope),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Review the approval decisions that are blocking localization runs %s.

1. CALL %s to see what is waiting.

2. For EACH decision, weigh the current value against the proposed one:
   - current_origin tells you who wrote the current value. "human" means
     a person chose those words on purpose. Overwriting human text is
     exactly what the gate exists to stop, so approve only when the
     proposed value is a clear improvement.
   - Check the proposed value for meaning drift, dropped honorifics,
     broken formatting tags, and length blowups.
   - When in doubt, reject. A rejected decision keeps the current value
     and costs nothing; a wrong approval silently destroys human work.

3. CALL rentl_resolve_approval for each decision with:
   - decision_id: from the listing
   - resolution: "approved" or "rejected"
   - resolved_by: who you are reviewing as
   - note: one line on why, so the audit trail explains itself

4. REPORT what you resolved and why, and remind the operator that the
   paused run still needs resuming unless it is waiting in-process.`, scope, listCall),
				},
			},
		},
	}, nil
}

func (s *Server) handleRunReportPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	runID := request.Params.Arguments["run_id"]

	statusCall := "rentl_run_status with no arguments"
	subject := "the most recent run"
	if runID != "" {
		statusCall = fmt.Sprintf("rentl_run_status with run_id=%q", runID)
		subject = fmt.Sprintf("run %s", runID)
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Status report for %s", subject),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Write a short status report on %s for a human who has not been watching.

1. CALL %s.

2. If the status is awaiting_approval, also CALL rentl_list_pending_approvals
   for that run so the report can say what is blocked and on which lines.

3. WRITE the report in a few sentences, covering:
   - overall completion percentage and how much to trust it (percent_mode:
     "final" is exact, "estimated" is a projection, "lower_bound" means
     at least this much, "unavailable" means no number yet)
   - which phase the run is in and how the remaining phases look
   - anything waiting on a human, with the gist of each pending decision
   - for failed runs, the phase and error, and whether resuming is possible

Do not paste raw JSON. Translate the numbers into plain statements a
project manager can act on.`, subject, statusCall),
				},
			},
		},
	}, nil
}

func (s *Server) handleOperatorSetupPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	return &mcplib.GetPromptResult{
		Description: "rentl operator workflow for AI agents",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: `You have access to rentl, a pipeline that localizes game scripts with
LLM agents under human supervision. Runs move through phases (ingest,
context, pretranslation, translate, qa, edit, export) and pause whenever
an agent proposes a change the project's approval policy says a human
must sign off on.

## Your Job: Watch Runs, Guard Human Text

### Watching:
Call rentl_run_status to see where a run stands. The note field tells
you whether anything needs action. Progress percentages carry a
percent_mode; only "final" numbers are exact, so report the mode
alongside the number.

### Guarding:
A paused run has pending decisions. Each one is an agent asking to
overwrite something, usually a translation a human wrote by hand. Call
rentl_list_pending_approvals to see them, judge each on its merits, and
rule with rentl_resolve_approval. Rejection is the safe default: it
keeps the human's text and the run continues without the change.

## Available Tools

- rentl_run_status: Status and progress of a run (use FIRST)
- rentl_list_pending_approvals: Decisions waiting on a verdict
- rentl_resolve_approval: Approve or reject one decision (final, no re-ruling)

## Resources

- rentl://runs: every known run, newest first
- rentl://runs/{id}/progress: phase-by-phase detail for one run
- rentl://approvals/pending: all unresolved decisions

## Judging a Proposed Overwrite

Approve when the proposal fixes a real defect: a mistranslation, a
dropped line, broken markup. Reject when the proposal is merely
different: human translators choose words for reasons that do not
survive a diff, and style is not a defect. Always set resolved_by to
who you are acting for and leave a one-line note; the audit trail is
read months later by people who were not in the room.`,
				},
			},
		},
	}, nil
}
