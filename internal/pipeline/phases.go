package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/export"
	"github.com/trevorWieland/rentl-sub001/internal/ingest"
	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/registry"
	"github.com/trevorWieland/rentl-sub001/internal/storage"
	"github.com/trevorWieland/rentl-sub001/internal/tm"
)

// Gated operations on provenance-tracked fields.
const (
	opOverwriteTranslation = "overwrite_translation"
	opOverwriteContextNote = "overwrite_context_note"
	opOverwriteQANote      = "overwrite_qa_note"
)

// schemaFor maps an agent phase to its output contract.
func schemaFor(phase model.Phase) string {
	switch phase {
	case model.PhaseContext:
		return registry.SchemaContextNotes
	case model.PhaseQA:
		return registry.SchemaQAFindings
	default:
		return registry.SchemaTranslationResult
	}
}

func (r *run) runIngest(ctx context.Context) error {
	if err := r.updateProgress(ctx, model.PhaseIngest, model.PhaseRunning, r.startMetrics(model.PhaseIngest)); err != nil {
		return err
	}

	lines, err := ingest.LoadSource(r.o.project.Source.Path)
	if err != nil {
		return err
	}
	r.lines = lines
	r.reindex()
	r.log(slog.LevelInfo, model.PhaseIngest, "source loaded", map[string]any{
		"path":  r.o.project.Source.Path,
		"lines": len(lines),
	})
	return r.completePhase(ctx, model.PhaseIngest)
}

func (r *run) runExport(ctx context.Context) error {
	if err := r.updateProgress(ctx, model.PhaseExport, model.PhaseRunning, r.startMetrics(model.PhaseExport)); err != nil {
		return err
	}

	summary, err := export.WriteOutput(r.o.project.Output.Path, r.lines)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal export summary: %w", err)
	}
	ref := model.ArtifactRef{
		ID:        uuid.New(),
		Phase:     model.PhaseExport,
		Kind:      ArtifactSummary,
		Name:      "export-summary.json",
		CreatedAt: time.Now().UTC(),
	}
	err = storage.WithRetry(ctx, saveRetries, saveBaseDelay, func() error {
		return r.o.store.WriteArtifact(ctx, r.state.RunID, ref, data)
	})
	if err != nil {
		return fmt.Errorf("pipeline: write export summary: %w", err)
	}
	r.state.Artifacts = append(r.state.Artifacts, ref)

	r.log(slog.LevelInfo, model.PhaseExport, "output written", map[string]any{
		"path":       summary.Path,
		"lines":      summary.Lines,
		"translated": summary.Translated,
		"missing":    len(summary.Missing),
	})
	return r.completePhase(ctx, model.PhaseExport)
}

// runAgentPhase shards the phase's input, runs the agent pool over it,
// and merges outputs back into the working set through the approval
// gate. Any unit failure fails the whole phase after every unit has had
// its chance.
func (r *run) runAgentPhase(ctx context.Context, pc model.PhaseConfig) error {
	phase := pc.Phase
	var decisions []approval.PendingDecision

	if phase == model.PhasePretranslation && r.o.memory != nil {
		if err := r.fillFromMemory(ctx, &decisions); err != nil {
			return err
		}
	}

	input := r.phaseInput(phase)
	if err := r.updateProgress(ctx, phase, model.PhaseRunning, r.startMetrics(phase)); err != nil {
		return err
	}

	if len(input) > 0 {
		units, err := Shard(phase, input, pc.Execution)
		if err != nil {
			return err
		}

		cfg := r.o.project.AgentFor(phase)
		if cfg.Model.Endpoint == "" {
			if ms := r.o.pipeline.ModelFor(phase); ms != nil {
				cfg.Model = *ms
			}
		}

		size := min(len(units), r.o.maxUnits)
		var maxParallel *int
		if pc.Execution != nil {
			maxParallel = pc.Execution.MaxParallelAgents
		}
		pool, err := r.o.factory.BuildPool(cfg, schemaFor(phase), size, maxParallel)
		if err != nil {
			return err
		}

		r.log(slog.LevelInfo, phase, "dispatching work units", map[string]any{
			"units": len(units),
			"lines": len(input),
		})
		results := pool.RunBatch(ctx, units)

		var failures []error
		for _, res := range results {
			if res.Err != nil {
				r.log(slog.LevelError, phase, "work unit failed", map[string]any{
					"unit":  res.Unit.ID,
					"error": res.Err.Error(),
				})
				failures = append(failures, res.Err)
				continue
			}
			if err := r.applyOutput(ctx, phase, res.Unit, res.Output, &decisions); err != nil {
				return err
			}
		}
		if len(failures) > 0 {
			return fmt.Errorf("pipeline: phase %s: %d of %d units failed: %w",
				phase, len(failures), len(results), errors.Join(failures...))
		}
	}

	if len(decisions) > 0 {
		if err := r.holdForApproval(ctx, phase, decisions); err != nil {
			return err
		}
	}
	return r.completePhase(ctx, phase)
}

// phaseInput selects the lines a phase's agents see. Pretranslation
// drafts only what is still untranslated; edit revisits only flagged
// lines; the other phases see everything.
func (r *run) phaseInput(phase model.Phase) []model.DialogueLine {
	switch phase {
	case model.PhasePretranslation:
		var out []model.DialogueLine
		for _, l := range r.lines {
			if l.Translation.Empty() {
				out = append(out, l)
			}
		}
		return out
	case model.PhaseEdit:
		var out []model.DialogueLine
		for _, l := range r.lines {
			if !l.QANote.Empty() {
				out = append(out, l)
			}
		}
		return out
	default:
		return append([]model.DialogueLine(nil), r.lines...)
	}
}

// fillFromMemory resolves exact translation-memory matches before any
// model call is spent. Hits are counted whether or not the gate lets
// them apply.
func (r *run) fillFromMemory(ctx context.Context, decisions *[]approval.PendingDecision) error {
	src := r.o.project.SourceLanguage.String()
	tgt := r.o.project.TargetLanguage.String()
	filled := 0

	for i := range r.lines {
		line := &r.lines[i]
		if !line.Translation.Empty() {
			continue
		}
		entry, ok, err := r.o.memory.Lookup(ctx, src, tgt, line.Source)
		if err != nil {
			return fmt.Errorf("pipeline: translation memory lookup: %w", err)
		}
		if !ok {
			continue
		}
		r.tmHits++

		origin := entry.Origin
		if !model.HumanAuthored(origin) {
			origin = model.AgentOrigin(string(model.PhasePretranslation), time.Now())
		}
		if r.gateApply(model.PhasePretranslation, line, &line.Translation,
			opOverwriteTranslation, entry.TargetText, origin, decisions) {
			filled++
		}
	}

	if r.tmHits > 0 {
		r.log(slog.LevelInfo, model.PhasePretranslation, "translation memory matches applied", map[string]any{
			"hits":   r.tmHits,
			"filled": filled,
		})
	}
	return nil
}

// applyOutput merges one unit's agent output into the working set. The
// harness has already validated line membership, so unknown IDs here
// mean the working set changed underneath us and are skipped with a
// warning.
func (r *run) applyOutput(ctx context.Context, phase model.Phase, u model.WorkUnit, out any, decisions *[]approval.PendingDecision) error {
	now := time.Now().UTC()
	origin := model.AgentOrigin(string(phase), now)

	switch v := out.(type) {
	case model.TranslationResult:
		for _, tl := range v.Lines {
			line := r.byID[tl.ID]
			if line == nil {
				r.log(slog.LevelWarn, phase, "result names unknown line", map[string]any{"line_id": tl.ID})
				continue
			}
			applied := r.gateApply(phase, line, &line.Translation, opOverwriteTranslation, tl.Translation, origin, decisions)
			if applied {
				switch phase {
				case model.PhaseTranslate:
					r.rememberTranslation(ctx, line)
				case model.PhaseEdit:
					r.linesEdited++
				}
			}
			if phase == model.PhaseEdit && applied {
				if r.gateApply(phase, line, &line.QANote, opOverwriteQANote, "", origin, decisions) {
					r.issuesResolved++
				}
			}
			if tl.Notes != "" {
				r.log(slog.LevelDebug, phase, "translator note", map[string]any{
					"line_id": tl.ID,
					"note":    tl.Notes,
				})
			}
		}
	case model.ContextNotes:
		for _, al := range v.Lines {
			line := r.byID[al.ID]
			if line == nil {
				r.log(slog.LevelWarn, phase, "result names unknown line", map[string]any{"line_id": al.ID})
				continue
			}
			r.gateApply(phase, line, &line.ContextNote, opOverwriteContextNote, al.Note, origin, decisions)
		}
	case model.QAFindings:
		r.linesChecked += int64(len(u.Lines))
		for _, f := range v.Lines {
			line := r.byID[f.ID]
			if line == nil {
				r.log(slog.LevelWarn, phase, "result names unknown line", map[string]any{"line_id": f.ID})
				continue
			}
			if f.Severity == model.QAOK {
				continue
			}
			note := string(f.Severity)
			if f.Note != "" {
				note += ": " + f.Note
			}
			r.gateApply(phase, line, &line.QANote, opOverwriteQANote, note, origin, decisions)
		}
	default:
		return fmt.Errorf("pipeline: phase %s: unexpected output type %T from unit %s", phase, out, u.ID)
	}
	return nil
}

// gateApply applies one proposed value to a tracked field, or parks it
// as a pending decision when the gate requires sign-off. Proposing the
// value already present is a no-op either way.
func (r *run) gateApply(phase model.Phase, line *model.DialogueLine, field *model.ProvenanceValue, op, proposed, origin string, decisions *[]approval.PendingDecision) bool {
	if proposed == field.Value {
		return false
	}
	if approval.RequiresApproval(field.Value, field.Origin, r.o.pipeline.Approval) {
		*decisions = append(*decisions, approval.PendingDecision{
			ID:             uuid.New(),
			RunID:          r.state.RunID,
			Phase:          phase,
			Operation:      op,
			LineID:         line.ID,
			CurrentValue:   field.Value,
			CurrentOrigin:  field.Origin,
			ProposedValue:  proposed,
			ProposedOrigin: origin,
			CreatedAt:      time.Now().UTC(),
		})
		return false
	}
	field.Value = proposed
	field.Origin = origin
	return true
}

// rememberTranslation records an applied translation in the memory so
// later runs can pretranslate it for free. Failures never break the
// run; a protected human entry simply stays.
func (r *run) rememberTranslation(ctx context.Context, line *model.DialogueLine) {
	if r.o.memory == nil {
		return
	}
	err := r.o.memory.Put(ctx, tm.Entry{
		SourceLang: r.o.project.SourceLanguage.String(),
		TargetLang: r.o.project.TargetLanguage.String(),
		SourceText: line.Source,
		TargetText: line.Translation.Value,
		Origin:     line.Translation.Origin,
	})
	switch {
	case err == nil:
	case errors.Is(err, tm.ErrProtected):
		r.log(slog.LevelDebug, model.PhaseTranslate, "memory entry protected, keeping human translation", map[string]any{
			"line_id": line.ID,
		})
	default:
		r.log(slog.LevelWarn, model.PhaseTranslate, "translation memory update failed", map[string]any{
			"line_id": line.ID,
			"error":   err.Error(),
		})
	}
}
