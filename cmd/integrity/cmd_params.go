// Package main implements the integrity CLI commands.
// This file contains the parameter inspection and patching commands.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neotheprogramist/integrity/internal/config"
	"github.com/neotheprogramist/integrity/internal/fri"
	"github.com/neotheprogramist/integrity/internal/params"
	"github.com/neotheprogramist/integrity/internal/toolchain"
)

var (
	friNSteps int
	friBound  int

	patchPublicInput string
	patchNSteps      int
	patchOut         string
)

// friStepsCmd prints the FRI folding schedule for given inputs
var friStepsCmd = &cobra.Command{
	Use:   "fri-steps",
	Short: "Compute the FRI folding schedule for a step count",
	Long: `Computes the fri_step_list the pipeline would write for the given
number of execution steps. The last layer degree bound defaults to the one
in the configured parameter file.

Example:
  integrity fri-steps --n-steps 1024 --bound 4`,
	RunE: runFriSteps,
}

// patchParamsCmd patches a parameter file without running the toolchain
var patchParamsCmd = &cobra.Command{
	Use:   "patch-params",
	Short: "Patch a parameter file with a recomputed fri_step_list",
	Long: `Loads the baseline parameter file, recomputes stark.fri.fri_step_list
for the given step count and writes the patched document. The step count is
taken from --n-steps, or extracted from an AIR public input file given via
--public-input.

Example:
  integrity patch-params --public-input fibonacci_public_input.json --out updated_cpu_air_params.json`,
	RunE: runPatchParams,
}

// layoutsCmd lists the supported layouts
var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "List the supported prover layouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, layout := range toolchain.DefaultLayouts() {
			fmt.Println(layout)
		}
		fmt.Printf("%s (optional, requires cairo_layout_params.json)\n", toolchain.LayoutDynamic)
		return nil
	},
}

func init() {
	friStepsCmd.Flags().IntVar(&friNSteps, "n-steps", 0, "number of execution steps (required)")
	friStepsCmd.Flags().IntVar(&friBound, "bound", 0,
		"last layer degree bound (default: from the configured parameter file)")
	_ = friStepsCmd.MarkFlagRequired("n-steps")

	patchParamsCmd.Flags().StringVar(&patchPublicInput, "public-input", "",
		"AIR public input file to take n_steps from")
	patchParamsCmd.Flags().IntVar(&patchNSteps, "n-steps", 0,
		"explicit step count (overrides --public-input)")
	patchParamsCmd.Flags().StringVar(&patchOut, "out", "updated_cpu_air_params.json",
		"path for the patched parameter file")
}

func runFriSteps(cmd *cobra.Command, args []string) error {
	bound := friBound
	if bound == 0 {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		doc, err := params.Load(cfg.Paths.ParameterFile)
		if err != nil {
			return fmt.Errorf("no --bound given and parameter file unavailable: %w", err)
		}
		bound, err = doc.LastLayerDegreeBound()
		if err != nil {
			return err
		}
	}

	steps, err := fri.StepList(friNSteps, bound)
	if err != nil {
		return err
	}

	out, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runPatchParams(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	nSteps := patchNSteps
	if nSteps == 0 {
		if patchPublicInput == "" {
			return fmt.Errorf("either --n-steps or --public-input is required")
		}
		pub, err := params.ReadPublicInput(patchPublicInput)
		if err != nil {
			return err
		}
		nSteps = pub.NSteps
	}

	doc, err := params.Load(cfg.Paths.ParameterFile)
	if err != nil {
		return err
	}

	patched, err := doc.Patch(nSteps)
	if err != nil {
		return err
	}
	if err := patched.Save(patchOut); err != nil {
		return err
	}

	logger.Info("Patched parameter file written",
		zap.String("path", patchOut),
		zap.Int("n_steps", nSteps))
	fmt.Printf("Patched parameter file saved: %s\n", patchOut)
	return nil
}
