// Package pipeline orchestrates per-layout proof generation: compile the
// program, execute it under the layout, derive the FRI schedule from the
// observed step count, patch the prover parameters and run the prover.
//
// Layouts are processed strictly sequentially and independently: a failure
// in one layout never aborts the others. Each layout gets its own scratch
// directory, removed on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/neotheprogramist/integrity/internal/config"
	"github.com/neotheprogramist/integrity/internal/executor"
	"github.com/neotheprogramist/integrity/internal/logging"
	"github.com/neotheprogramist/integrity/internal/params"
	"github.com/neotheprogramist/integrity/internal/toolchain"
)

// ProofFileName is the fixed name of the proof artifact written into each
// layout's output directory.
const ProofFileName = "cairo0_stone6_keccak_160_lsb_example_proof.json"

// Pipeline drives the proving toolchain across layouts.
type Pipeline struct {
	cfg      *config.Config
	tc       *toolchain.Toolchain
	baseline params.Document

	// KeepScratch retains per-layout scratch directories for debugging.
	KeepScratch bool
}

// New builds a pipeline from configuration, loading the baseline parameter
// document once; it is shared read-only across layouts.
func New(cfg *config.Config, tc *toolchain.Toolchain) (*Pipeline, error) {
	baseline, err := params.Load(cfg.Paths.ParameterFile)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, tc: tc, baseline: baseline}, nil
}

// Layouts resolves the layouts to process: the config override when set,
// otherwise the default fixed set.
func (p *Pipeline) Layouts() ([]toolchain.Layout, error) {
	if len(p.cfg.Layouts) == 0 {
		return toolchain.DefaultLayouts(), nil
	}
	layouts := make([]toolchain.Layout, 0, len(p.cfg.Layouts))
	for _, name := range p.cfg.Layouts {
		l, err := toolchain.ParseLayout(name)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}
	return layouts, nil
}

// Run processes every layout in order and aggregates the per-layout results.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	layouts, err := p.Layouts()
	if err != nil {
		return Report{}, err
	}

	report := Report{StartedAt: time.Now()}
	for _, layout := range layouts {
		result := p.ProcessLayout(ctx, layout)
		if result.Err != nil {
			logging.PipelineError("Layout %s failed at %s stage: %v", layout, result.Stage, result.Err)
		} else {
			logging.Pipeline("Proof saved for %s in %s", layout, result.ProofPath)
		}
		report.Results = append(report.Results, result)
	}
	report.FinishedAt = time.Now()

	logging.Pipeline("Process completed: %d/%d layouts succeeded",
		report.Succeeded(), len(report.Results))
	return report, nil
}

// ProcessLayout runs the full compile/run/patch/prove sequence for one
// layout. All intermediate artifacts live in a fresh scratch directory.
func (p *Pipeline) ProcessLayout(ctx context.Context, layout toolchain.Layout) (result LayoutResult) {
	logging.Pipeline("Processing layout: %s", layout)

	result = LayoutResult{Layout: layout}
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	scratch, err := os.MkdirTemp("", "integrity-"+layout.String()+"-")
	if err != nil {
		result.Stage = StageSetup
		result.Err = fmt.Errorf("create scratch directory: %w", err)
		return result
	}
	defer func() {
		if p.KeepScratch {
			logging.PipelineDebug("Keeping scratch directory %s", scratch)
			return
		}
		if err := os.RemoveAll(scratch); err != nil {
			logging.PipelineWarn("Failed to remove scratch directory %s: %v", scratch, err)
		}
	}()

	files := scratchFiles(scratch)

	result.Stage = StageCompile
	if err := p.tc.Compile(ctx, layout, files.Program); err != nil {
		result.Err = err
		return result
	}

	result.Stage = StageRun
	if err := p.tc.Run(ctx, layout, files); err != nil {
		result.Err = err
		return result
	}

	result.Stage = StageExtract
	pub, err := params.ReadPublicInput(files.PublicInput)
	if err != nil {
		result.Err = err
		return result
	}
	result.NSteps = pub.NSteps
	logging.PipelineDebug("Layout %s executed %d steps", layout, pub.NSteps)

	result.Stage = StagePatch
	patched, err := p.baseline.Patch(pub.NSteps)
	if err != nil {
		result.Err = err
		return result
	}
	steps, err := patched.StepList()
	if err != nil {
		result.Err = err
		return result
	}
	result.StepList = steps

	updated := filepath.Join(scratch, "updated_cpu_air_params.json")
	if err := patched.Save(updated); err != nil {
		result.Err = err
		return result
	}
	logging.PipelineDebug("Updated parameter file saved: %s", updated)

	result.Stage = StageProve
	proofPath := filepath.Join(p.cfg.Paths.OutputDir, layout.String(), ProofFileName)
	if err := os.MkdirAll(filepath.Dir(proofPath), 0755); err != nil {
		result.Err = fmt.Errorf("create output directory: %w", err)
		return result
	}
	if err := p.tc.Prove(ctx, layout, updated, files, proofPath); err != nil {
		result.Err = err
		return result
	}

	result.Stage = StageDone
	result.ProofPath = proofPath
	return result
}

// Commands returns the toolchain invocations for a layout without executing
// anything, with scratch paths shown symbolically. Used by dry runs.
func (p *Pipeline) Commands(layout toolchain.Layout) []executor.Command {
	files := scratchFiles("<scratch>")
	proofPath := filepath.Join(p.cfg.Paths.OutputDir, layout.String(), ProofFileName)
	return []executor.Command{
		p.tc.CompileCommand(layout, files.Program),
		p.tc.RunCommand(layout, files),
		p.tc.ProveCommand(layout, filepath.Join("<scratch>", "updated_cpu_air_params.json"), files, proofPath),
	}
}

func scratchFiles(scratch string) toolchain.RunFiles {
	return toolchain.RunFiles{
		Program:      filepath.Join(scratch, "fibonacci_compiled.json"),
		Trace:        filepath.Join(scratch, "fibonacci_trace.bin"),
		Memory:       filepath.Join(scratch, "fibonacci_memory.bin"),
		PublicInput:  filepath.Join(scratch, "fibonacci_public_input.json"),
		PrivateInput: filepath.Join(scratch, "fibonacci_private_input.json"),
	}
}
