// Package config loads rentl configuration: process settings from
// environment variables, and the declarative project definition from a
// YAML file. It also validates pipeline definitions before any
// execution begins.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// Config holds all process-level configuration.
type Config struct {
	// Local state.
	StateDir   string // Root directory for run state, artifacts, and logs.
	PendingDir string // Pending approval decisions; defaults to StateDir/pending.
	TMPath     string // SQLite translation memory; defaults to StateDir/tm.db.

	// Optional Postgres backend for run state. Empty selects the
	// filesystem backend.
	DatabaseURL string

	// Model endpoint defaults, used when the project file does not pin
	// its own.
	DefaultEndpoint string
	DefaultModel    string
	APIKeyEnv       string // Name of the env var holding the endpoint API key.

	// Execution bounds. Requests and work units are capped separately.
	MaxParallelRequests int
	MaxParallelUnits    int
	InvokeTimeout       time.Duration
	EndpointRPS         float64 // Token-bucket refill rate per endpoint; 0 disables limiting.
	EndpointBurst       int

	// Approval settings.
	ApprovalPolicy      model.ApprovalPolicy
	TokenPrivateKeyPath string // Ed25519 private key PEM for resume tokens.
	TokenPublicKeyPath  string
	TokenExpiration     time.Duration

	// Run-log buffering.
	LogBufferSize   int
	LogFlushTimeout time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (Config, error) {
	stateDir := envStr("RENTL_STATE_DIR", ".rentl")
	cfg := Config{
		StateDir:            stateDir,
		PendingDir:          envStr("RENTL_PENDING_DIR", filepath.Join(stateDir, "pending")),
		TMPath:              envStr("RENTL_TM_PATH", filepath.Join(stateDir, "tm.db")),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		DefaultEndpoint:     envStr("RENTL_ENDPOINT", ""),
		DefaultModel:        envStr("RENTL_MODEL", ""),
		APIKeyEnv:           envStr("RENTL_API_KEY_ENV", "RENTL_API_KEY"),
		MaxParallelRequests: envInt("RENTL_MAX_PARALLEL_REQUESTS", 8),
		MaxParallelUnits:    envInt("RENTL_MAX_PARALLEL_UNITS", 4),
		InvokeTimeout:       envDuration("RENTL_INVOKE_TIMEOUT", 120*time.Second),
		EndpointRPS:         envFloat("RENTL_ENDPOINT_RPS", 0),
		EndpointBurst:       envInt("RENTL_ENDPOINT_BURST", 4),
		ApprovalPolicy:      model.ApprovalPolicy(envStr("RENTL_APPROVAL_POLICY", "standard")),
		TokenPrivateKeyPath: envStr("RENTL_TOKEN_PRIVATE_KEY", ""),
		TokenPublicKeyPath:  envStr("RENTL_TOKEN_PUBLIC_KEY", ""),
		TokenExpiration:     envDuration("RENTL_TOKEN_EXPIRATION", 72*time.Hour),
		LogBufferSize:       envInt("RENTL_LOG_BUFFER_SIZE", 1000),
		LogFlushTimeout:     envDuration("RENTL_LOG_FLUSH_TIMEOUT", 100*time.Millisecond),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "rentl"),
		LogLevel:            envStr("RENTL_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("config: RENTL_STATE_DIR is required")
	}
	if c.MaxParallelRequests <= 0 {
		return fmt.Errorf("config: RENTL_MAX_PARALLEL_REQUESTS must be positive")
	}
	if c.MaxParallelUnits <= 0 {
		return fmt.Errorf("config: RENTL_MAX_PARALLEL_UNITS must be positive")
	}
	if c.InvokeTimeout <= 0 {
		return fmt.Errorf("config: RENTL_INVOKE_TIMEOUT must be positive")
	}
	if !c.ApprovalPolicy.Valid() {
		return fmt.Errorf("config: RENTL_APPROVAL_POLICY must be permissive, standard, or strict")
	}
	if c.LogBufferSize <= 0 {
		return fmt.Errorf("config: RENTL_LOG_BUFFER_SIZE must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
