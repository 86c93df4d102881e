// Package main implements the integrity CLI, which drives the Cairo proving
// toolchain (cairo-compile, cairo-run, cpu_air_prover) across the supported
// layouts to produce example proof artifacts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/neotheprogramist/integrity/internal/logging"
)

var (
	// Global flags
	verbose   bool
	cfgPath   string
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "integrity",
	Short: "integrity - example proof generation for the Stone prover",
	Long: `integrity drives the external Cairo proving toolchain across a fixed
set of prover layouts, producing one example proof artifact per layout.

For each layout it compiles the layout's Cairo program, executes it under
the Cairo VM in proof mode, recomputes the FRI folding schedule from the
observed step count, patches the prover parameter file and invokes the
Stone cpu_air_prover.

The toolchain binaries (cairo-compile, cairo-run, cpu_air_prover) must be
available on PATH or configured via .integrity/config.yaml.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("File logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".integrity/config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", ".", "workspace directory for logs and state")

	rootCmd.AddCommand(proveCmd)
	rootCmd.AddCommand(friStepsCmd)
	rootCmd.AddCommand(patchParamsCmd)
	rootCmd.AddCommand(layoutsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
