// Package main implements the rentl CLI: project validation, pipeline
// runs, approval handling, translation memory maintenance, and an MCP
// server over stdio.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/trevorWieland/rentl-sub001/internal/config"
	"github.com/trevorWieland/rentl-sub001/internal/storage"
)

var (
	// projectFile is the path to the project definition.
	projectFile string
	// version is set at build time via -ldflags.
	version = "dev"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rentl",
	Short: "Agent-driven localization pipeline for game dialogue",
	Long: `rentl runs game dialogue through a phased localization pipeline:
ingest, context, pretranslation, translate, qa, edit, export. Each
model-backed phase is an agent; runs that would overwrite human work
pause for approval and resume after a verdict.

Configuration comes from rentl.yaml (see "rentl validate") plus
RENTL_* environment variables; a .env file in the working directory is
loaded when present.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if present (non-fatal; production won't have one).
		_ = godotenv.Load()
		slog.SetDefault(newLogger())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectFile, "project", "rentl.yaml", "path to the project file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(tmCmd)
	rootCmd.AddCommand(mcpCmd)
}

// newLogger builds the process logger. Logs go to stderr so stdout
// stays clean for command output and the stdio MCP transport.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("RENTL_LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openRunStore selects the run-state backend the same way a pipeline
// run does: Postgres when DATABASE_URL is set, filesystem otherwise.
// The returned func releases the backend.
func openRunStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := storage.New(ctx, cfg.DatabaseURL, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	}
	fs, err := storage.NewFSStore(filepath.Join(cfg.StateDir, "runs"))
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}
