// Package cmd provides the CLI commands for codeindex.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codeindex/internal/config"
	"github.com/Aman-CERP/codeindex/internal/engine"
	"github.com/Aman-CERP/codeindex/internal/logging"
	"github.com/Aman-CERP/codeindex/pkg/version"
)

var (
	indexDir   string
	dimensions int
	logLevel   string

	loggingCleanup func()
)

// NewRootCmd creates the root command for the codeindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codeindex",
		Short: "Branch-aware semantic and lexical code index",
		Long: `codeindex maintains a branch-aware index over source repositories:
semantic chunks in a vector index, BM25 keyword search, and a
symbol/call-graph catalog, all under one index directory.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("codeindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&indexDir, "index-dir", ".codeindex", "Index data directory")
	cmd.PersistentFlags().IntVar(&dimensions, "dimensions", 768, "Embedding dimensions")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		cleanup, err := logging.SetupDefault(logging.Config{
			Level:         logLevel,
			WriteToStderr: true,
		})
		if err != nil {
			return err
		}
		loggingCleanup = cleanup
		return nil
	}
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCallersCmd())
	cmd.AddCommand(newCalleesCmd())
	cmd.AddCommand(newDeltaCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newGCCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// engineConfig builds the engine configuration from the global flags.
func engineConfig() config.Config {
	cfg := config.Default(indexDir)
	cfg.Embeddings.Dimensions = dimensions
	cfg.LogLevel = logLevel
	return cfg
}

// withEngine opens the engine, runs fn, and closes it.
func withEngine(fn func(*engine.Engine) error) error {
	eng, err := engine.Open(engineConfig())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()
	return fn(eng)
}
