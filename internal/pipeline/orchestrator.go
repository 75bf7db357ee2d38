// Package pipeline sequences a validated project's phases over its
// dialogue lines. Per phase it shards the working set into units, runs
// the phase's agent pool, routes tracked-field overwrites through the
// approval gate, records progress snapshots, and persists run state.
//
// A run pauses rather than fails when the gate fires: gated mutations
// land in the pending store, the run state is saved as
// awaiting_approval, and Resume picks the run back up once an operator
// has ruled on the decisions.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/trevorWieland/rentl-sub001/internal/agent"
	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/config"
	"github.com/trevorWieland/rentl-sub001/internal/ingest"
	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/progress"
	"github.com/trevorWieland/rentl-sub001/internal/registry"
	"github.com/trevorWieland/rentl-sub001/internal/storage"
	"github.com/trevorWieland/rentl-sub001/internal/telemetry"
	"github.com/trevorWieland/rentl-sub001/internal/tm"
)

// Artifact kinds the orchestrator writes.
const (
	// ArtifactLines is the working-set snapshot written at every phase
	// boundary. Resume rebuilds the run's lines from the newest one.
	ArtifactLines = "lines"
	// ArtifactSummary is the export summary written by the export phase.
	ArtifactSummary = "summary"
)

// Run log flushing: small batches so an operator tailing the store sees
// entries within a couple of seconds.
const (
	logBatchSize     = 64
	logFlushInterval = 2 * time.Second
)

// Phase-boundary saves retry transient store errors before failing the
// run.
const (
	saveRetries   = 3
	saveBaseDelay = 200 * time.Millisecond
)

// resumeTokenTTL bounds how long a pause may sit unresolved before its
// resume token expires.
const resumeTokenTTL = 72 * time.Hour

// defaultParallelism caps a phase's concurrent units when neither
// Config.MaxUnits nor the phase's max_parallel_agents is set. Fan-out
// is never unbounded.
const defaultParallelism = 4

// Config carries the orchestrator's collaborators. Project, Store, and
// Clients are required. Pending is required unless the approval policy
// is permissive. Memory is optional; without it the pretranslation
// phase runs on agents alone.
type Config struct {
	Project *config.Project
	Store   storage.Store
	Clients agent.ClientFunc

	Pending approval.Store
	Tokens  *approval.TokenManager

	Schemas *registry.Schemas
	Tools   *registry.Tools
	Memory  *tm.Store
	Logger  *slog.Logger

	// MaxUnits caps concurrent work units per phase when the phase does
	// not set max_parallel_agents. Zero or negative selects the built-in
	// default.
	MaxUnits int

	// WaitApprovals blocks a gated run on its pending decisions in
	// process instead of pausing and returning. Useful for interactive
	// sessions where an operator resolves decisions as they appear.
	WaitApprovals bool
}

// Orchestrator executes runs for one validated project. It is stateless
// across runs; per-run state lives on the run value threaded through
// execution.
type Orchestrator struct {
	project    *config.Project
	pipeline   *model.PipelineConfig
	store      storage.Store
	pending    approval.Store
	tokens     *approval.TokenManager
	factory    *agent.Factory
	memory     *tm.Store
	logger     *slog.Logger
	tracer     trace.Tracer
	violations metric.Int64Counter
	maxUnits   int
	wait       bool
}

// New validates the project's pipeline and builds an orchestrator for
// it. Validation failures surface as *model.ConfigurationError before
// any run starts.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Project == nil {
		return nil, fmt.Errorf("pipeline: project is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline: store is required")
	}
	if cfg.Clients == nil {
		return nil, fmt.Errorf("pipeline: client builder is required")
	}

	validated, err := config.ValidatePipeline(&cfg.Project.Pipeline)
	if err != nil {
		return nil, err
	}
	if cfg.Project.Source.Path == "" {
		return nil, &model.ConfigurationError{Field: "source.path", Reason: "source path is required"}
	}
	if pc := validated.PhaseFor(model.PhaseExport); pc != nil && pc.Enabled && cfg.Project.Output.Path == "" {
		return nil, &model.ConfigurationError{Field: "output.path", Reason: "output path is required when the export phase is enabled"}
	}
	if validated.Approval != model.ApprovalPermissive && cfg.Pending == nil {
		return nil, &model.ConfigurationError{
			Field:  "approval",
			Reason: fmt.Sprintf("%s approval policy needs a pending-decision store", validated.Approval),
		}
	}

	// Weight problems should fail here, not on the first snapshot.
	if err := newRunProgress(validated, cfg.Project.PhaseWeights).Validate(); err != nil {
		return nil, &model.ConfigurationError{Field: "phase_weights", Reason: err.Error()}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	schemas := cfg.Schemas
	if schemas == nil {
		schemas, err = registry.DefaultSchemas()
		if err != nil {
			return nil, err
		}
	}
	tokens := cfg.Tokens
	if tokens == nil && cfg.Pending != nil {
		tokens, err = approval.NewTokenManager("", "", resumeTokenTTL)
		if err != nil {
			return nil, err
		}
	}

	meta := agent.Meta{
		Project:        cfg.Project.Name,
		SourceLanguage: cfg.Project.SourceLanguage.String(),
		TargetLanguage: cfg.Project.TargetLanguage.String(),
	}

	violations, _ := telemetry.Meter("rentl/pipeline").Int64Counter(
		"rentl.progress.monotonicity_violations",
		metric.WithDescription("Progress regressions detected between run snapshots"),
	)

	maxUnits := cfg.MaxUnits
	if maxUnits <= 0 {
		maxUnits = defaultParallelism
	}

	return &Orchestrator{
		project:    cfg.Project,
		pipeline:   validated,
		store:      cfg.Store,
		pending:    cfg.Pending,
		tokens:     tokens,
		factory:    agent.NewFactory(meta, cfg.Clients, schemas, cfg.Tools),
		memory:     cfg.Memory,
		logger:     logger,
		tracer:     telemetry.Tracer("rentl/pipeline"),
		violations: violations,
		maxUnits:   maxUnits,
		wait:       cfg.WaitApprovals,
	}, nil
}

// Run executes a fresh run end to end. Once the run exists the returned
// state is non-nil even on failure; a gated run comes back with status
// awaiting_approval and an *model.ApprovalRequired error naming the
// first blocking decision.
func (o *Orchestrator) Run(ctx context.Context) (*model.RunState, error) {
	state := model.NewRunState(o.project.Name)
	state.Progress = *newRunProgress(o.pipeline, o.project.PhaseWeights)
	return o.execute(ctx, state, nil)
}

// Resume reloads a paused or interrupted run and continues from its
// first unfinished phase. A run paused on approvals first has its
// resolved decisions applied; if unresolved decisions remain the run
// stays paused.
func (o *Orchestrator) Resume(ctx context.Context, runID uuid.UUID) (*model.RunState, error) {
	state, err := o.store.LoadRunState(ctx, runID)
	if err != nil {
		return nil, err
	}
	if state.Status.Terminal() {
		return state, fmt.Errorf("pipeline: run %s is already %s", runID, state.Status)
	}
	if state.Project != o.project.Name {
		return state, fmt.Errorf("pipeline: run %s belongs to project %q, not %q", runID, state.Project, o.project.Name)
	}

	lines, err := o.loadLinesArtifact(ctx, state)
	if err != nil {
		return state, err
	}
	return o.execute(ctx, state, lines)
}

// ResumeToken validates a signed resume token and resumes the run it
// names. The token must match a known pending decision.
func (o *Orchestrator) ResumeToken(ctx context.Context, token string) (*model.RunState, error) {
	if o.tokens == nil {
		return nil, fmt.Errorf("pipeline: no token manager configured")
	}
	claims, err := o.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	if o.pending != nil {
		if _, err := o.pending.Get(ctx, claims.DecisionID); err != nil {
			return nil, fmt.Errorf("pipeline: resume token names unknown decision: %w", err)
		}
	}
	return o.Resume(ctx, claims.RunID)
}

// run carries everything one execution mutates: the orchestrator stays
// reusable and read-only across runs.
type run struct {
	o       *Orchestrator
	state   *model.RunState
	lines   []model.DialogueLine
	byID    map[string]*model.DialogueLine
	tracker *progress.Tracker
	logs    *storage.LogBuffer

	// Counters feeding metrics that cannot be rederived from the lines
	// themselves. Seeded from the stored snapshot on resume.
	tmHits         int64
	linesChecked   int64
	linesEdited    int64
	issuesResolved int64
}

// errPaused marks a run that stopped on pending approvals. Internal
// control flow only; callers see the ApprovalRequired it wraps.
var errPaused = errors.New("pipeline: run paused for approval")

func (o *Orchestrator) execute(ctx context.Context, state *model.RunState, lines []model.DialogueLine) (*model.RunState, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("rentl.run_id", state.RunID.String()),
		attribute.String("rentl.project", o.project.Name),
	))
	defer span.End()

	r := &run{
		o:       o,
		state:   state,
		lines:   lines,
		tracker: progress.NewTracker(),
		logs:    storage.NewLogBuffer(o.store, state.RunID, o.logger, logBatchSize, logFlushInterval),
	}
	r.reindex()
	r.seedCounters()
	r.tracker.RegisterMetrics()
	if err := r.tracker.Update(&state.Progress); err != nil {
		return state, fmt.Errorf("pipeline: stored progress snapshot is invalid: %w", err)
	}

	// The buffer must survive ctx cancellation long enough to flush the
	// failure entries it is told about.
	r.logs.Start(context.WithoutCancel(ctx))
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		r.logs.Drain(drainCtx)
	}()

	if state.Status == model.RunAwaitingApproval {
		paused, err := r.resumeFromPause(ctx)
		if err != nil {
			return state, r.fail(ctx, state.CurrentPhase, err)
		}
		if paused != nil {
			return state, paused
		}
	} else if state.Status != model.RunPending {
		r.log(slog.LevelInfo, "", "resuming interrupted run", map[string]any{"from_phase": string(state.CurrentPhase)})
	}

	state.Status = model.RunRunning
	if err := r.save(ctx); err != nil {
		return state, r.fail(ctx, "", err)
	}

	if err := r.ensureLines(ctx); err != nil {
		return state, r.fail(ctx, "", err)
	}

	for _, pc := range o.pipeline.Phases {
		if !pc.Enabled {
			r.log(slog.LevelDebug, pc.Phase, "phase disabled, skipping", nil)
			continue
		}
		if r.phaseDone(pc.Phase) {
			continue
		}

		state.CurrentPhase = pc.Phase
		err := r.runPhase(ctx, pc)
		if errors.Is(err, errPaused) {
			var ar *model.ApprovalRequired
			if errors.As(err, &ar) {
				return state, ar
			}
			return state, err
		}
		if err != nil {
			return state, r.fail(ctx, pc.Phase, err)
		}
		if err := r.checkpoint(ctx, pc.Phase); err != nil {
			return state, r.fail(ctx, pc.Phase, err)
		}
	}

	now := time.Now().UTC()
	state.Status = model.RunCompleted
	state.CurrentPhase = ""
	state.CompletedAt = &now
	if err := r.save(ctx); err != nil {
		return state, r.fail(ctx, "", err)
	}
	r.log(slog.LevelInfo, "", "run completed", map[string]any{"lines": len(r.lines)})
	return state, nil
}

// resumeFromPause applies resolved decisions for a run that paused on
// approvals. It returns a non-nil ApprovalRequired when unresolved
// decisions keep the run paused.
func (r *run) resumeFromPause(ctx context.Context) (*model.ApprovalRequired, error) {
	phase := r.state.CurrentPhase
	r.log(slog.LevelInfo, phase, "resuming paused run", map[string]any{
		"pending_decisions": len(r.state.PendingDecisions),
	})

	unresolved, err := r.settleApprovals(ctx)
	if err != nil {
		return nil, err
	}
	if len(unresolved) > 0 && r.o.wait {
		if err := r.awaitDecisions(ctx, unresolved); err != nil {
			return nil, err
		}
		unresolved = nil
	}
	if len(unresolved) > 0 {
		// Some resolutions may have been applied above; persist them
		// before going back to sleep.
		if err := r.writeLinesArtifact(ctx, phase); err != nil {
			return nil, err
		}
		if err := r.save(ctx); err != nil {
			return nil, err
		}
		d, err := r.o.pending.Get(ctx, unresolved[0])
		if err != nil {
			return nil, err
		}
		r.log(slog.LevelInfo, phase, "run still paused on approvals", map[string]any{
			"pending_decisions": len(unresolved),
		})
		return &model.ApprovalRequired{
			DecisionID: d.ID,
			RunID:      r.state.RunID,
			Phase:      d.Phase,
			Operation:  d.Operation,
			LineID:     d.LineID,
		}, nil
	}
	r.state.Status = model.RunRunning
	return nil, r.finishPhase(ctx, phase)
}

// runPhase dispatches one enabled phase. The boundary phases do file
// work themselves; the middle phases run agents.
func (r *run) runPhase(ctx context.Context, pc model.PhaseConfig) error {
	ctx, span := r.o.tracer.Start(ctx, "pipeline.phase", trace.WithAttributes(
		attribute.String("rentl.phase", string(pc.Phase)),
	))
	defer span.End()

	r.log(slog.LevelInfo, pc.Phase, "phase started", nil)

	switch pc.Phase {
	case model.PhaseIngest:
		return r.runIngest(ctx)
	case model.PhaseExport:
		return r.runExport(ctx)
	default:
		return r.runAgentPhase(ctx, pc)
	}
}

// ensureLines loads the source file when no phase will: either the
// ingest phase is absent or disabled, or a crash lost the working set
// after ingest already completed.
func (r *run) ensureLines(ctx context.Context) error {
	if r.lines != nil {
		return nil
	}
	if pc := r.o.pipeline.PhaseFor(model.PhaseIngest); pc != nil && pc.Enabled && !r.phaseDone(model.PhaseIngest) {
		return nil
	}
	lines, err := ingest.LoadSource(r.o.project.Source.Path)
	if err != nil {
		return err
	}
	r.lines = lines
	r.reindex()
	r.log(slog.LevelDebug, "", "source loaded outside ingest phase", map[string]any{
		"path":  r.o.project.Source.Path,
		"lines": len(lines),
	})
	return nil
}

// fail marks the run failed, persists the terminal state on a
// best-effort basis, and returns the causing error.
func (r *run) fail(ctx context.Context, phase model.Phase, cause error) error {
	r.log(slog.LevelError, phase, "run failed", map[string]any{"error": cause.Error()})

	now := time.Now().UTC()
	r.state.Status = model.RunFailed
	r.state.LastError = cause.Error()
	r.state.CompletedAt = &now

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.save(saveCtx); err != nil {
		r.o.logger.Error("persisting failed run state", "run_id", r.state.RunID, "error", err)
	}
	return cause
}

// save persists the run state, retrying transient store errors. Every
// save refreshes UpdatedAt and the embedded progress snapshot.
func (r *run) save(ctx context.Context) error {
	if cur := r.tracker.Current(); cur != nil {
		r.state.Progress = *cur
	}
	r.state.UpdatedAt = time.Now().UTC()
	return storage.WithRetry(ctx, saveRetries, saveBaseDelay, func() error {
		return r.o.store.SaveRunState(ctx, r.state)
	})
}

// checkpoint writes the working-set artifact and run state at a phase
// boundary.
func (r *run) checkpoint(ctx context.Context, phase model.Phase) error {
	if err := r.writeLinesArtifact(ctx, phase); err != nil {
		return err
	}
	if err := r.save(ctx); err != nil {
		return err
	}
	r.log(slog.LevelInfo, phase, "phase completed", map[string]any{"lines": len(r.lines)})
	return nil
}

// finishPhase closes out a phase whose agent work already ran: final
// metrics, then the boundary checkpoint.
func (r *run) finishPhase(ctx context.Context, phase model.Phase) error {
	if err := r.completePhase(ctx, phase); err != nil {
		return err
	}
	return r.checkpoint(ctx, phase)
}

// updateProgress mutates one phase's entry in a cloned snapshot, recomputes
// summaries, and feeds the result through the monotonicity guard. A
// regression is logged and counted but the snapshot is kept.
func (r *run) updateProgress(ctx context.Context, phase model.Phase, status model.PhaseStatus, metrics []model.ProgressMetric) error {
	next := progress.Clone(&r.state.Progress)
	pp := next.PhaseFor(phase)
	if pp == nil {
		return fmt.Errorf("pipeline: phase %s is not tracked by this run", phase)
	}
	pp.Status = status
	if metrics != nil {
		pp.Metrics = metrics
	}
	progress.Recompute(next)

	if err := r.tracker.Update(next); err != nil {
		var mv *model.MonotonicityViolation
		if !errors.As(err, &mv) {
			return err
		}
		r.violationNoticed(ctx, phase, mv)
	}
	r.state.Progress = *r.tracker.Current()
	return nil
}

func (r *run) violationNoticed(ctx context.Context, phase model.Phase, mv *model.MonotonicityViolation) {
	if r.o.violations != nil {
		r.o.violations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("phase", string(mv.Phase)),
			attribute.String("quantity", mv.Quantity),
		))
	}
	r.log(slog.LevelWarn, phase, "progress regression detected", map[string]any{
		"metric":   mv.MetricKey,
		"quantity": mv.Quantity,
		"prev":     mv.Prev,
		"next":     mv.Next,
	})
}

// log writes one structured entry to the operator logger and the
// durable run log.
func (r *run) log(level slog.Level, phase model.Phase, msg string, fields map[string]any) {
	attrs := []any{"run_id", r.state.RunID.String()}
	if phase != "" {
		attrs = append(attrs, "phase", string(phase))
	}
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	r.o.logger.Log(context.Background(), level, msg, attrs...)

	r.logs.Append(model.RunLogEntry{
		Level:   level.String(),
		Phase:   phase,
		Message: msg,
		Fields:  fields,
	})
}

func (r *run) reindex() {
	r.byID = make(map[string]*model.DialogueLine, len(r.lines))
	for i := range r.lines {
		r.byID[r.lines[i].ID] = &r.lines[i]
	}
}

// seedCounters restores the non-derivable metric counters from the
// stored snapshot so a resumed run does not report them as zero.
func (r *run) seedCounters() {
	r.tmHits = storedCompleted(&r.state.Progress, model.PhasePretranslation, "tm_hits")
	r.linesChecked = storedCompleted(&r.state.Progress, model.PhaseQA, "lines_checked")
	r.linesEdited = storedCompleted(&r.state.Progress, model.PhaseEdit, "lines_edited")
	r.issuesResolved = storedCompleted(&r.state.Progress, model.PhaseEdit, "issues_resolved")
}

func storedCompleted(rp *model.RunProgress, phase model.Phase, key string) int64 {
	pp := rp.PhaseFor(phase)
	if pp == nil {
		return 0
	}
	for _, m := range pp.Metrics {
		if m.MetricKey == key {
			return m.CompletedUnits
		}
	}
	return 0
}

// phaseDone reports whether the stored progress already shows the phase
// finished. Drives the resume skip.
func (r *run) phaseDone(phase model.Phase) bool {
	pp := r.state.Progress.PhaseFor(phase)
	if pp == nil {
		return false
	}
	return pp.Status == model.PhaseCompleted || pp.Status == model.PhaseSkipped
}

// writeLinesArtifact snapshots the working set into the artifact store
// and records the reference on the run state.
func (r *run) writeLinesArtifact(ctx context.Context, phase model.Phase) error {
	data, err := json.Marshal(r.lines)
	if err != nil {
		return fmt.Errorf("pipeline: marshal working set: %w", err)
	}
	ref := model.ArtifactRef{
		ID:        uuid.New(),
		Phase:     phase,
		Kind:      ArtifactLines,
		Name:      string(phase) + "-lines.json",
		CreatedAt: time.Now().UTC(),
	}
	err = storage.WithRetry(ctx, saveRetries, saveBaseDelay, func() error {
		return r.o.store.WriteArtifact(ctx, r.state.RunID, ref, data)
	})
	if err != nil {
		return fmt.Errorf("pipeline: write working-set artifact: %w", err)
	}
	r.state.Artifacts = append(r.state.Artifacts, ref)
	return nil
}

// loadLinesArtifact rebuilds the working set from the newest lines
// artifact, or returns nil lines when the run has none yet.
func (o *Orchestrator) loadLinesArtifact(ctx context.Context, state *model.RunState) ([]model.DialogueLine, error) {
	var ref *model.ArtifactRef
	for i := range state.Artifacts {
		if state.Artifacts[i].Kind == ArtifactLines {
			ref = &state.Artifacts[i]
		}
	}
	if ref == nil {
		return nil, nil
	}
	data, err := o.store.LoadArtifact(ctx, state.RunID, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load working set: %w", err)
	}
	var lines []model.DialogueLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("pipeline: parse working set: %w", err)
	}
	return lines, nil
}

// newRunProgress builds the initial snapshot: every enabled phase
// pending with no metrics. Disabled phases are not tracked; with no
// trustworthy percent they would pin the run summary to unavailable.
func newRunProgress(pipeline *model.PipelineConfig, weights map[model.Phase]float64) *model.RunProgress {
	rp := &model.RunProgress{
		Summary: model.ProgressSummary{PercentMode: model.PercentUnavailable},
	}
	for _, pc := range pipeline.Phases {
		if !pc.Enabled {
			continue
		}
		rp.Phases = append(rp.Phases, model.PhaseProgress{
			Phase:   pc.Phase,
			Status:  model.PhasePending,
			Summary: model.ProgressSummary{PercentMode: model.PercentUnavailable},
		})
	}
	if len(weights) > 0 {
		rp.PhaseWeights = make(map[model.Phase]float64, len(weights))
		for p, w := range weights {
			rp.PhaseWeights[p] = w
		}
	}
	return rp
}
