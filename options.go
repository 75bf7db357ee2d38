package rentl

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	projectFile   string
	config        Config
	logger        *slog.Logger
	version       string
	invoker       Invoker
	waitApprovals bool
}

// Config overrides process configuration normally read from the
// environment. Zero-valued fields keep their env or default values, so
// an embedding caller only sets what it needs:
//
//	app, err := rentl.New(
//	    rentl.WithProjectFile("game/rentl.yaml"),
//	    rentl.WithConfig(rentl.Config{Endpoint: "http://localhost:11434/v1"}),
//	)
type Config struct {
	// StateDir is the root directory for run state, artifacts, and the
	// translation memory (RENTL_STATE_DIR).
	StateDir string
	// DatabaseURL selects the Postgres run-state backend when non-empty
	// (DATABASE_URL). Empty keeps the filesystem backend.
	DatabaseURL string
	// Endpoint and Model are the default model endpoint settings used
	// when the project file does not pin its own (RENTL_ENDPOINT,
	// RENTL_MODEL).
	Endpoint string
	Model    string
	// APIKey is the endpoint API key. When set it is used directly,
	// bypassing the RENTL_API_KEY_ENV indirection.
	APIKey string
	// ApprovalPolicy applies when the project file leaves the pipeline
	// approval policy unset: "permissive", "standard", or "strict"
	// (RENTL_APPROVAL_POLICY).
	ApprovalPolicy string
	// MaxParallelRequests and MaxParallelUnits bound concurrent model
	// requests and concurrent work units (RENTL_MAX_PARALLEL_REQUESTS,
	// RENTL_MAX_PARALLEL_UNITS).
	MaxParallelRequests int
	MaxParallelUnits    int
}

// WithProjectFile sets the path of the YAML project definition.
// Defaults to "rentl.yaml" in the working directory.
func WithProjectFile(path string) Option {
	return func(o *resolvedOptions) { o.projectFile = path }
}

// WithConfig overrides environment configuration with the non-zero
// fields of cfg. Later WithConfig calls override earlier ones field by
// field.
func WithConfig(cfg Config) Option {
	return func(o *resolvedOptions) {
		if cfg.StateDir != "" {
			o.config.StateDir = cfg.StateDir
		}
		if cfg.DatabaseURL != "" {
			o.config.DatabaseURL = cfg.DatabaseURL
		}
		if cfg.Endpoint != "" {
			o.config.Endpoint = cfg.Endpoint
		}
		if cfg.Model != "" {
			o.config.Model = cfg.Model
		}
		if cfg.APIKey != "" {
			o.config.APIKey = cfg.APIKey
		}
		if cfg.ApprovalPolicy != "" {
			o.config.ApprovalPolicy = cfg.ApprovalPolicy
		}
		if cfg.MaxParallelRequests != 0 {
			o.config.MaxParallelRequests = cfg.MaxParallelRequests
		}
		if cfg.MaxParallelUnits != 0 {
			o.config.MaxParallelUnits = cfg.MaxParallelUnits
		}
	}
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and the MCP
// server identity.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithInvoker replaces the built-in HTTP model client with a custom
// implementation, e.g. local inference or a scripted test double. All
// phases of every run share the one Invoker; per-agent endpoint and
// model settings are passed through on each request.
func WithInvoker(inv Invoker) Option {
	return func(o *resolvedOptions) { o.invoker = inv }
}

// WithWaitApprovals makes gated runs block in process until their
// pending decisions are resolved, instead of pausing and returning
// ErrAwaitingApproval. Useful for interactive sessions where an
// operator resolves decisions as they appear.
func WithWaitApprovals(wait bool) Option {
	return func(o *resolvedOptions) { o.waitApprovals = wait }
}
