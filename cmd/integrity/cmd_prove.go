// Package main implements the integrity CLI commands.
// This file contains the prove command, the full per-layout pipeline.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neotheprogramist/integrity/internal/config"
	"github.com/neotheprogramist/integrity/internal/executor"
	"github.com/neotheprogramist/integrity/internal/pipeline"
	"github.com/neotheprogramist/integrity/internal/toolchain"
)

var (
	proveLayouts []string
	strict       bool
	keepScratch  bool
	dryRun       bool
)

// proveCmd runs the full pipeline over all configured layouts
var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Generate example proofs for every configured layout",
	Long: `Runs the compile/run/patch/prove sequence for each layout in order.

Layouts are processed independently: a failure in one layout is recorded
and the remaining layouts still run. The command prints a per-layout report
and exits 0 even when layouts failed, unless --strict is given.

Example:
  integrity prove --layouts small,starknet --strict`,
	RunE: runProve,
}

func init() {
	proveCmd.Flags().StringSliceVar(&proveLayouts, "layouts", nil,
		"layouts to process (default: the full fixed set)")
	proveCmd.Flags().BoolVar(&strict, "strict", false,
		"exit nonzero if any layout fails")
	proveCmd.Flags().BoolVar(&keepScratch, "keep-scratch", false,
		"retain per-layout scratch directories for debugging")
	proveCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"print the toolchain commands without executing them")
}

func runProve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if len(proveLayouts) > 0 {
		cfg.Layouts = proveLayouts
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("Starting proof generation",
		zap.Strings("layouts", cfg.Layouts),
		zap.String("parameter_file", cfg.Paths.ParameterFile),
		zap.Bool("dry_run", dryRun))

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	p.KeepScratch = keepScratch

	if dryRun {
		layouts, err := p.Layouts()
		if err != nil {
			return err
		}
		for _, layout := range layouts {
			fmt.Printf("# layout %s\n", layout)
			for _, c := range p.Commands(layout) {
				fmt.Println(c.CommandString())
			}
		}
		return nil
	}

	report, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Print(report.Summary())

	for _, res := range report.Failed() {
		logger.Error("Layout failed",
			zap.String("layout", res.Layout.String()),
			zap.String("stage", string(res.Stage)),
			zap.Error(res.Err))
	}

	if strict && !report.AllSucceeded() {
		return fmt.Errorf("%d of %d layouts failed", len(report.Failed()), len(report.Results))
	}
	return nil
}

// buildPipeline wires the executor, toolchain and pipeline from config.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	execCfg := executor.DefaultConfig()
	execCfg.DefaultTimeout = cfg.GetDefaultTimeout()
	execCfg.MaxTimeout = cfg.GetMaxTimeout()
	if cfg.Execution.MaxOutputBytes > 0 {
		execCfg.MaxOutputBytes = cfg.Execution.MaxOutputBytes
	}
	if len(cfg.Execution.AllowedEnvVars) > 0 {
		execCfg.AllowedEnvironment = cfg.Execution.AllowedEnvVars
	}

	e := executor.NewDirectWithConfig(execCfg)
	e.SetAuditCallback(func(ev executor.AuditEvent) {
		logger.Debug("Execution event",
			zap.String("type", string(ev.Type)),
			zap.String("binary", ev.Command.Binary),
			zap.String("layout", ev.Command.Tags["layout"]))
	})

	opts := toolchain.Options{
		CompilerBin:      cfg.Tools.CompilerBin,
		RunnerBin:        cfg.Tools.RunnerBin,
		ProverBin:        cfg.Tools.ProverBin,
		SourceDir:        cfg.Paths.SourceDir,
		ProgramInputFile: cfg.Paths.ProgramInputFile,
		ProverConfigFile: cfg.Paths.ProverConfigFile,
		CompileTimeout:   cfg.GetCompileTimeout(),
		RunTimeout:       cfg.GetRunTimeout(),
		ProveTimeout:     cfg.GetProveTimeout(),
	}

	return pipeline.New(cfg, toolchain.New(opts, e))
}
