// Package rentl is the public API for embedding the rentl localization
// pipeline.
//
// Tooling and editor integrations import this package to run and resume
// pipeline runs without shelling out to the CLI:
//
//	app, err := rentl.New(
//	    rentl.WithProjectFile("game/rentl.yaml"),
//	    rentl.WithLogger(logger),
//	    rentl.WithConfig(rentl.Config{Endpoint: endpoint, Model: "qwen3:14b"}),
//	)
//	if err != nil { ... }
//	defer app.Close(ctx)
//
//	result, err := app.Run(ctx)
//	if errors.Is(err, rentl.ErrAwaitingApproval) {
//	    // Resolve result.PendingApprovals, then app.Resume(ctx, result.RunID).
//	}
//
// The import graph enforces a strict no-cycle rule: rentl (root) imports
// internal/*, but internal/* never imports the root. Public types
// (RunResult, PendingApproval, InvokeRequest) are standalone structs with
// no internal imports; the converters live here because this is the only
// package that sees both sides of the boundary.
package rentl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/semaphore"

	"github.com/trevorWieland/rentl-sub001/internal/agent"
	"github.com/trevorWieland/rentl-sub001/internal/approval"
	"github.com/trevorWieland/rentl-sub001/internal/config"
	"github.com/trevorWieland/rentl-sub001/internal/invoke"
	"github.com/trevorWieland/rentl-sub001/internal/mcp"
	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/pipeline"
	"github.com/trevorWieland/rentl-sub001/internal/registry"
	"github.com/trevorWieland/rentl-sub001/internal/storage"
	"github.com/trevorWieland/rentl-sub001/internal/telemetry"
	"github.com/trevorWieland/rentl-sub001/internal/tm"
	"github.com/trevorWieland/rentl-sub001/migrations"
)

// ErrAwaitingApproval reports that a run paused on pending approval
// decisions instead of completing. The RunResult returned alongside it
// lists the blocking decisions; resolve them and call Resume.
var ErrAwaitingApproval = errors.New("rentl: run awaiting approval")

// App is one configured pipeline. Construct with New(), execute with
// Run(). App has no public fields — use New() options to configure it.
type App struct {
	orch         *pipeline.Orchestrator
	pending      approval.Store
	memory       *tm.Store
	limiter      *invoke.Limiter
	db           *storage.DB // non-nil only with the Postgres backend
	mcpSrv       *mcp.Server
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
}

// New loads configuration and the project file, opens the run store,
// pending-decision store, and translation memory, and wires the
// orchestrator. It validates the pipeline up front — configuration
// errors surface here, never mid-run. It does not start a run; call
// Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyConfig(&cfg, o.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config overrides: %w", err)
	}

	version := o.version
	if version == "" {
		version = "dev"
	}
	projectPath := o.projectFile
	if projectPath == "" {
		projectPath = "rentl.yaml"
	}

	logger.Info("rentl starting", "version", version, "project_file", projectPath)

	project, err := config.LoadProject(projectPath)
	if err != nil {
		return nil, err
	}
	// The project file wins; process config fills the approval-policy
	// and default-model gaps it leaves.
	project.ApplyConfigDefaults(cfg)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Open the run store: Postgres when DATABASE_URL is set, the
	// filesystem backend otherwise.
	var store storage.Store
	var db *storage.DB
	if cfg.DatabaseURL != "" {
		db, err = storage.New(context.Background(), cfg.DatabaseURL, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}
		if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("migrations: %w", err)
		}
		store = db
		logger.Info("run store: postgres")
	} else {
		fsStore, err := storage.NewFSStore(filepath.Join(cfg.StateDir, "runs"))
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}
		store = fsStore
		logger.Info("run store: filesystem", "dir", cfg.StateDir)
	}

	pending, err := approval.NewFSStore(cfg.PendingDir)
	if err != nil {
		closeDB(db)
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("pending store: %w", err)
	}

	tokens, err := approval.NewTokenManager(cfg.TokenPrivateKeyPath, cfg.TokenPublicKeyPath, cfg.TokenExpiration)
	if err != nil {
		closeDB(db)
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("resume tokens: %w", err)
	}

	memory, err := tm.Open(cfg.TMPath)
	if err != nil {
		closeDB(db)
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("translation memory: %w", err)
	}

	schemas, err := registry.DefaultSchemas()
	if err != nil {
		_ = memory.Close()
		closeDB(db)
		_ = otelShutdown(context.Background())
		return nil, err
	}
	tools := registry.NewTools()
	if err := tools.Register(tmLookupTool(memory, project)); err != nil {
		_ = memory.Close()
		closeDB(db)
		_ = otelShutdown(context.Background())
		return nil, err
	}

	var limiter *invoke.Limiter
	if cfg.EndpointRPS > 0 {
		limiter = invoke.NewLimiter(cfg.EndpointRPS, cfg.EndpointBurst)
	}

	orch, err := pipeline.New(pipeline.Config{
		Project:       project,
		Store:         store,
		Clients:       newClientFunc(cfg, o.config.APIKey, limiter, o.invoker),
		Pending:       pending,
		Tokens:        tokens,
		Schemas:       schemas,
		Tools:         tools,
		Memory:        memory,
		Logger:        logger,
		MaxUnits:      cfg.MaxParallelUnits,
		WaitApprovals: o.waitApprovals,
	})
	if err != nil {
		limiter.Close()
		_ = memory.Close()
		closeDB(db)
		_ = otelShutdown(context.Background())
		return nil, err
	}

	return &App{
		orch:         orch,
		pending:      pending,
		memory:       memory,
		limiter:      limiter,
		db:           db,
		mcpSrv:       mcp.New(store, pending, logger),
		otelShutdown: otelShutdown,
		logger:       logger,
	}, nil
}

// Run executes a fresh run of the configured pipeline, blocking until
// it completes, fails, or pauses. A paused run returns its RunResult
// together with ErrAwaitingApproval; the state stays on disk so a later
// process can Resume it.
func (a *App) Run(ctx context.Context) (*RunResult, error) {
	state, err := a.orch.Run(ctx)
	return a.finish(ctx, state, err)
}

// Resume reloads a paused or interrupted run and continues from its
// first unfinished phase. Resolved decisions are applied first; if
// unresolved decisions remain the run stays paused.
func (a *App) Resume(ctx context.Context, runID uuid.UUID) (*RunResult, error) {
	state, err := a.orch.Resume(ctx, runID)
	return a.finish(ctx, state, err)
}

// ResumeToken validates a signed resume token and resumes the run it
// names.
func (a *App) ResumeToken(ctx context.Context, token string) (*RunResult, error) {
	state, err := a.orch.ResumeToken(ctx, token)
	return a.finish(ctx, state, err)
}

// MCPServer returns the Model Context Protocol server backed by this
// App's stores, ready to serve over stdio or mount on an HTTP
// transport.
func (a *App) MCPServer() *mcpserver.MCPServer {
	return a.mcpSrv.MCPServer()
}

// Close releases the App's resources: the endpoint rate limiter, the
// translation memory, the database pool when the Postgres backend is
// active, and the OTEL provider. Safe to call after a failed or paused
// run — run state stays on disk for a later Resume.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("rentl closing")

	a.limiter.Close()
	var errs []error
	if err := a.memory.Close(); err != nil {
		errs = append(errs, fmt.Errorf("translation memory: %w", err))
	}
	if a.db != nil {
		a.db.Close()
	}
	if err := a.otelShutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// finish converts the orchestrator's outcome to the public shape,
// translating the internal approval pause signal to ErrAwaitingApproval.
func (a *App) finish(ctx context.Context, state *model.RunState, err error) (*RunResult, error) {
	if state == nil {
		return nil, err
	}
	res := a.toRunResult(ctx, state)
	var gate *model.ApprovalRequired
	if errors.As(err, &gate) {
		return res, fmt.Errorf("%w: %d decision(s) pending", ErrAwaitingApproval, len(res.PendingApprovals))
	}
	return res, err
}

// toRunResult builds the public run summary, hydrating pending
// decisions from the pending store. A decision that cannot be loaded is
// logged and skipped rather than failing the whole summary.
func (a *App) toRunResult(ctx context.Context, state *model.RunState) *RunResult {
	res := &RunResult{
		RunID:           state.RunID,
		Status:          string(state.Status),
		CurrentPhase:    string(state.CurrentPhase),
		PercentComplete: state.Progress.Summary.PercentComplete,
		PercentMode:     string(state.Progress.Summary.PercentMode),
		ETASeconds:      state.Progress.Summary.ETASeconds,
		Error:           state.LastError,
		StartedAt:       state.StartedAt,
		CompletedAt:     state.CompletedAt,
	}
	for _, id := range state.PendingDecisions {
		d, err := a.pending.Get(ctx, id)
		if err != nil {
			a.logger.Warn("pending decision lookup failed", "decision_id", id, "error", err)
			continue
		}
		if d.Resolved() {
			continue
		}
		res.PendingApprovals = append(res.PendingApprovals, PendingApproval{
			ID:             d.ID,
			Phase:          string(d.Phase),
			Operation:      d.Operation,
			LineID:         d.LineID,
			CurrentValue:   d.CurrentValue,
			CurrentOrigin:  d.CurrentOrigin,
			ProposedValue:  d.ProposedValue,
			ProposedOrigin: d.ProposedOrigin,
			ResumeToken:    d.Token,
			CreatedAt:      d.CreatedAt,
		})
	}
	return res
}

// applyConfig lays option overrides over environment configuration.
// Overriding StateDir re-derives the pending and TM paths unless they
// were pinned separately.
func applyConfig(cfg *config.Config, over Config) {
	if over.StateDir != "" {
		if cfg.PendingDir == filepath.Join(cfg.StateDir, "pending") {
			cfg.PendingDir = filepath.Join(over.StateDir, "pending")
		}
		if cfg.TMPath == filepath.Join(cfg.StateDir, "tm.db") {
			cfg.TMPath = filepath.Join(over.StateDir, "tm.db")
		}
		cfg.StateDir = over.StateDir
	}
	if over.DatabaseURL != "" {
		cfg.DatabaseURL = over.DatabaseURL
	}
	if over.Endpoint != "" {
		cfg.DefaultEndpoint = over.Endpoint
	}
	if over.Model != "" {
		cfg.DefaultModel = over.Model
	}
	if over.ApprovalPolicy != "" {
		cfg.ApprovalPolicy = model.ApprovalPolicy(over.ApprovalPolicy)
	}
	if over.MaxParallelRequests != 0 {
		cfg.MaxParallelRequests = over.MaxParallelRequests
	}
	if over.MaxParallelUnits != 0 {
		cfg.MaxParallelUnits = over.MaxParallelUnits
	}
}

// newClientFunc builds the per-endpoint client constructor handed to
// the agent factory. A custom Invoker replaces the HTTP client
// wholesale; otherwise each distinct endpoint configuration gets its
// own HTTP client, all sharing one request semaphore and one rate
// limiter.
func newClientFunc(cfg config.Config, apiKey string, limiter *invoke.Limiter, override Invoker) agent.ClientFunc {
	if override != nil {
		client := &invokerAdapter{inv: override}
		return func(model.ModelSettings) (invoke.Client, error) { return client, nil }
	}

	requests := semaphore.NewWeighted(int64(cfg.MaxParallelRequests))
	return func(ms model.ModelSettings) (invoke.Client, error) {
		endpoint := ms.Endpoint
		if endpoint == "" {
			endpoint = cfg.DefaultEndpoint
		}
		if endpoint == "" {
			return nil, &model.ConfigurationError{Field: "endpoint", Reason: "no model endpoint configured: set the agent's endpoint or RENTL_ENDPOINT"}
		}
		name := ms.Model
		if name == "" {
			name = cfg.DefaultModel
		}
		if name == "" {
			return nil, &model.ConfigurationError{Field: "model", Reason: "no model name configured: set the agent's model or RENTL_MODEL"}
		}
		key := apiKey
		if key == "" {
			keyEnv := ms.APIKeyEnv
			if keyEnv == "" {
				keyEnv = cfg.APIKeyEnv
			}
			key = os.Getenv(keyEnv)
		}
		client := invoke.NewHTTPClient(endpoint, key, name, cfg.InvokeTimeout, limiter)
		return invoke.Bound(client, requests), nil
	}
}

// tmLookupTool exposes exact translation-memory lookups to agents that
// list "tm_lookup" in their tool set.
func tmLookupTool(memory *tm.Store, project *config.Project) registry.Tool {
	src := project.SourceLanguage.String()
	tgt := project.TargetLanguage.String()
	return registry.Tool{
		Name:        "tm_lookup",
		Description: "Look up an exact translation memory match for a source line. Arguments: source_text (string, required).",
		Invoke: func(ctx context.Context, args map[string]any) (any, error) {
			text, _ := args["source_text"].(string)
			if text == "" {
				return nil, fmt.Errorf("tm_lookup: source_text is required")
			}
			entry, ok, err := memory.Lookup(ctx, src, tgt, text)
			if err != nil {
				return nil, err
			}
			if !ok {
				return map[string]any{"found": false}, nil
			}
			return map[string]any{
				"found":       true,
				"target_text": entry.TargetText,
				"origin":      entry.Origin,
				"use_count":   entry.UseCount,
			}, nil
		},
	}
}

// closeDB tolerates the nil *DB of the filesystem backend.
func closeDB(db *storage.DB) {
	if db != nil {
		db.Close()
	}
}
