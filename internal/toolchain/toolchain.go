package toolchain

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/neotheprogramist/integrity/internal/executor"
	"github.com/neotheprogramist/integrity/internal/logging"
)

// ToolError reports a toolchain binary that ran but did not succeed.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Killed   bool
	Reason   string
}

func (e *ToolError) Error() string {
	if e.Killed {
		return fmt.Sprintf("%s killed: %s", e.Tool, e.Reason)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s exited %d", e.Tool, e.ExitCode)
}

// Options configures the toolchain binaries and fixed input paths.
type Options struct {
	// Binary names; resolved via PATH when not absolute.
	CompilerBin string
	RunnerBin   string
	ProverBin   string

	// SourceDir holds the per-layout program sources
	// (<layout>/cairo0_fibonacci.cairo) and, for the dynamic layout,
	// <layout>/cairo_layout_params.json.
	SourceDir string

	// ProgramInputFile is the fixed program input (fibonacci_input.json).
	ProgramInputFile string

	// ProverConfigFile is the fixed prover configuration
	// (cpu_air_prover_config.json).
	ProverConfigFile string

	// Per-tool wall-clock timeouts. Zero uses the executor default.
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	ProveTimeout   time.Duration
}

// DefaultOptions returns the conventional binary names and file paths.
func DefaultOptions() Options {
	return Options{
		CompilerBin:      "cairo-compile",
		RunnerBin:        "cairo-run",
		ProverBin:        "cpu_air_prover",
		SourceDir:        ".",
		ProgramInputFile: "fibonacci_input.json",
		ProverConfigFile: "cpu_air_prover_config.json",
	}
}

// Toolchain drives the three external binaries through an executor.
type Toolchain struct {
	opts Options
	exec executor.Executor
}

// New creates a toolchain that executes via exec.
func New(opts Options, exec executor.Executor) *Toolchain {
	return &Toolchain{opts: opts, exec: exec}
}

// RunFiles names the artifacts exchanged between the runner and the prover
// for a single layout.
type RunFiles struct {
	Program      string // compiled program (runner input)
	Trace        string // binary execution trace
	Memory       string // binary memory dump
	PublicInput  string // AIR public input JSON
	PrivateInput string // AIR private input JSON
}

// CompileCommand builds the compiler invocation for a layout.
func (t *Toolchain) CompileCommand(layout Layout, outputPath string) executor.Command {
	return executor.Command{
		Binary: t.opts.CompilerBin,
		Arguments: []string{
			filepath.Join(t.opts.SourceDir, layout.String(), "cairo0_fibonacci.cairo"),
			"--output", outputPath,
			"--no_debug_info",
			"--proof_mode",
		},
		Limits: limits(t.opts.CompileTimeout),
		Tags:   map[string]string{"tool": "compiler", "layout": layout.String()},
	}
}

// RunCommand builds the runner invocation for a layout. For the dynamic
// layout the extra cairo_layout_params.json flag is appended.
func (t *Toolchain) RunCommand(layout Layout, files RunFiles) executor.Command {
	args := []string{
		"--program", files.Program,
		"--layout", layout.String(),
		"--proof_mode",
		"--program_input", t.opts.ProgramInputFile,
		"--trace_file", files.Trace,
		"--memory_file", files.Memory,
		"--air_private_input", files.PrivateInput,
		"--air_public_input", files.PublicInput,
		"--print_info",
		"--print_output",
	}

	if layout.IsDynamic() {
		args = append(args, "--cairo_layout_params_file",
			filepath.Join(t.opts.SourceDir, layout.String(), "cairo_layout_params.json"))
	}

	return executor.Command{
		Binary:    t.opts.RunnerBin,
		Arguments: args,
		Limits:    limits(t.opts.RunTimeout),
		Tags:      map[string]string{"tool": "runner", "layout": layout.String()},
	}
}

// ProveCommand builds the prover invocation.
func (t *Toolchain) ProveCommand(layout Layout, parameterFile string, files RunFiles, outFile string) executor.Command {
	return executor.Command{
		Binary: t.opts.ProverBin,
		Arguments: []string{
			"--parameter_file", parameterFile,
			"--prover_config_file", t.opts.ProverConfigFile,
			"--public_input_file", files.PublicInput,
			"--private_input_file", files.PrivateInput,
			"--out_file", outFile,
			"--generate_annotations",
		},
		Limits: limits(t.opts.ProveTimeout),
		Tags:   map[string]string{"tool": "prover", "layout": layout.String()},
	}
}

// Compile compiles the layout's program to outputPath.
func (t *Toolchain) Compile(ctx context.Context, layout Layout, outputPath string) error {
	return t.run(ctx, "compiler", t.CompileCommand(layout, outputPath))
}

// Run executes the compiled program under the layout, producing the trace,
// memory dump and AIR input descriptors.
func (t *Toolchain) Run(ctx context.Context, layout Layout, files RunFiles) error {
	return t.run(ctx, "runner", t.RunCommand(layout, files))
}

// Prove generates a proof from the patched parameters and run artifacts.
func (t *Toolchain) Prove(ctx context.Context, layout Layout, parameterFile string, files RunFiles, outFile string) error {
	return t.run(ctx, "prover", t.ProveCommand(layout, parameterFile, files, outFile))
}

func (t *Toolchain) run(ctx context.Context, tool string, cmd executor.Command) error {
	logging.Tool("Running %s: %s", tool, cmd.CommandString())

	result, err := t.exec.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}

	if !result.Success {
		return fmt.Errorf("%s: %s", tool, result.Error)
	}
	if result.Killed {
		logging.ToolError("%s killed: %s", tool, result.KillReason)
		return &ToolError{Tool: cmd.Binary, Killed: true, Reason: result.KillReason}
	}
	if result.ExitCode != 0 {
		logging.ToolError("%s exited %d: %s", tool, result.ExitCode, result.Stderr)
		return &ToolError{Tool: cmd.Binary, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	logging.ToolDebug("%s finished in %s", tool, result.Duration)
	return nil
}

func limits(timeout time.Duration) *executor.ResourceLimits {
	if timeout <= 0 {
		return nil
	}
	return &executor.ResourceLimits{TimeoutMs: int64(timeout / time.Millisecond)}
}
