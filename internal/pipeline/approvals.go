package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// completePhase records a phase's final metrics and marks it done.
func (r *run) completePhase(ctx context.Context, phase model.Phase) error {
	return r.updateProgress(ctx, phase, model.PhaseCompleted, r.metricsSnapshot(phase, true))
}

// holdForApproval parks the phase's gated mutations as pending
// decisions and pauses the run. The pause is persisted first either
// way; in wait mode the call then blocks on the decisions in process,
// otherwise it returns an errPaused-wrapped ApprovalRequired naming
// the first one.
func (r *run) holdForApproval(ctx context.Context, phase model.Phase, decisions []approval.PendingDecision) error {
	if r.o.pending == nil {
		return fmt.Errorf("pipeline: phase %s requires approvals but no pending store is configured", phase)
	}

	for i := range decisions {
		d := &decisions[i]
		if r.o.tokens != nil {
			token, _, err := r.o.tokens.Issue(r.state.RunID, d.ID)
			if err != nil {
				return err
			}
			d.Token = token
		}
		if err := r.o.pending.Create(ctx, *d); err != nil {
			return err
		}
		r.state.PendingDecisions = append(r.state.PendingDecisions, d.ID)
		r.log(slog.LevelInfo, phase, "approval required", map[string]any{
			"decision_id": d.ID.String(),
			"operation":   d.Operation,
			"line_id":     d.LineID,
		})
	}

	// Persist the pause before blocking or returning, so an operator
	// listing runs from another process sees awaiting_approval and the
	// partially applied working set is not lost.
	if err := r.updateProgress(ctx, phase, model.PhaseAwaitingApproval, r.metricsSnapshot(phase, false)); err != nil {
		return err
	}
	r.state.Status = model.RunAwaitingApproval
	if err := r.writeLinesArtifact(ctx, phase); err != nil {
		return err
	}
	if err := r.save(ctx); err != nil {
		return err
	}

	if r.o.wait {
		r.log(slog.LevelInfo, phase, "waiting for approval decisions", map[string]any{
			"pending_decisions": len(r.state.PendingDecisions),
		})
		if err := r.awaitDecisions(ctx, r.state.PendingDecisions); err != nil {
			return err
		}
		r.state.Status = model.RunRunning
		return nil
	}

	r.log(slog.LevelInfo, phase, "run paused for approval", map[string]any{
		"pending_decisions": len(r.state.PendingDecisions),
	})
	first := decisions[0]
	return fmt.Errorf("%w: %w", errPaused, &model.ApprovalRequired{
		DecisionID: first.ID,
		RunID:      r.state.RunID,
		Phase:      phase,
		Operation:  first.Operation,
		LineID:     first.LineID,
	})
}

// settleApprovals applies the verdicts of resolved pending decisions
// and reports the ones still open. Approved proposals land on their
// lines; rejected ones are dropped and the current value stands.
func (r *run) settleApprovals(ctx context.Context) ([]uuid.UUID, error) {
	var unresolved []uuid.UUID
	for _, id := range r.state.PendingDecisions {
		d, err := r.o.pending.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !d.Resolved() {
			unresolved = append(unresolved, id)
			continue
		}
		r.settle(ctx, d)
	}
	r.state.PendingDecisions = unresolved
	return unresolved, nil
}

// awaitDecisions blocks until every listed decision is resolved,
// applying each verdict as it arrives.
func (r *run) awaitDecisions(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		d, err := r.o.pending.Await(ctx, id)
		if err != nil {
			return err
		}
		r.settle(ctx, d)
	}
	r.state.PendingDecisions = nil
	return nil
}

func (r *run) settle(ctx context.Context, d *approval.PendingDecision) {
	fields := map[string]any{
		"decision_id": d.ID.String(),
		"operation":   d.Operation,
		"line_id":     d.LineID,
		"resolved_by": d.ResolvedBy,
	}
	if d.Resolution == approval.ResolutionApproved {
		r.applyDecision(ctx, d)
		r.log(slog.LevelInfo, d.Phase, "approved decision applied", fields)
	} else {
		r.log(slog.LevelInfo, d.Phase, "rejected decision dropped", fields)
	}
}

// applyDecision lands one approved proposal on its line. Counters that
// feed phase metrics advance exactly as they would have on the
// ungated path, and re-applying an already-landed proposal is a no-op
// so a crash between settling and saving cannot double-count.
func (r *run) applyDecision(ctx context.Context, d *approval.PendingDecision) {
	line := r.byID[d.LineID]
	if line == nil {
		r.log(slog.LevelWarn, d.Phase, "approved decision names unknown line", map[string]any{
			"decision_id": d.ID.String(),
			"line_id":     d.LineID,
		})
		return
	}

	switch d.Operation {
	case opOverwriteTranslation:
		if line.Translation.Value == d.ProposedValue {
			return
		}
		line.Translation = model.ProvenanceValue{Value: d.ProposedValue, Origin: d.ProposedOrigin}
		switch d.Phase {
		case model.PhaseTranslate:
			r.rememberTranslation(ctx, line)
		case model.PhaseEdit:
			r.linesEdited++
			// The edit is now in; clear its flag too, unless the note
			// itself is human-authored and protected.
			if !line.QANote.Empty() &&
				!approval.RequiresApproval(line.QANote.Value, line.QANote.Origin, r.o.pipeline.Approval) {
				line.QANote = model.ProvenanceValue{Origin: d.ProposedOrigin}
				r.issuesResolved++
			}
		}
	case opOverwriteContextNote:
		if line.ContextNote.Value == d.ProposedValue {
			return
		}
		line.ContextNote = model.ProvenanceValue{Value: d.ProposedValue, Origin: d.ProposedOrigin}
	case opOverwriteQANote:
		if line.QANote.Value == d.ProposedValue {
			return
		}
		line.QANote = model.ProvenanceValue{Value: d.ProposedValue, Origin: d.ProposedOrigin}
		if d.Phase == model.PhaseEdit && d.ProposedValue == "" {
			r.issuesResolved++
		}
	default:
		r.log(slog.LevelWarn, d.Phase, "approved decision has unknown operation", map[string]any{
			"decision_id": d.ID.String(),
			"operation":   d.Operation,
		})
	}
}
