package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/neotheprogramist/integrity/internal/config"
	"github.com/neotheprogramist/integrity/internal/executor"
	"github.com/neotheprogramist/integrity/internal/fri"
	"github.com/neotheprogramist/integrity/internal/params"
	"github.com/neotheprogramist/integrity/internal/toolchain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const baselineJSON = `{
    "field": "PrimeField0",
    "stark": {
        "fri": {
            "fri_step_list": [0, 4, 4, 3],
            "last_layer_degree_bound": 4,
            "n_queries": 18,
            "proof_of_work_bits": 24
        },
        "log_n_cosets": 4
    }
}`

// scriptedExecutor plays the role of the external toolchain: the runner
// writes a public input file and the prover writes a proof file.
type scriptedExecutor struct {
	nSteps int

	// failCompileFor makes the compiler exit nonzero for one layout.
	failCompileFor string

	// seenParamFiles records the parameter document handed to the prover,
	// keyed by layout.
	seenParamFiles map[string][]int

	// scratchDirs records every scratch directory observed.
	scratchDirs []string
}

func (s *scriptedExecutor) Validate(cmd executor.Command) error { return nil }

func (s *scriptedExecutor) Execute(_ context.Context, cmd executor.Command) (*executor.ExecutionResult, error) {
	ok := &executor.ExecutionResult{Success: true, ExitCode: 0}
	layout := cmd.Tags["layout"]

	switch cmd.Tags["tool"] {
	case "compiler":
		if layout == s.failCompileFor {
			return &executor.ExecutionResult{Success: true, ExitCode: 2, Stderr: "compilation failed"}, nil
		}
		out := argValue(cmd.Arguments, "--output")
		s.scratchDirs = append(s.scratchDirs, filepath.Dir(out))
		if err := os.WriteFile(out, []byte(`{}`), 0644); err != nil {
			return nil, err
		}
	case "runner":
		pub := argValue(cmd.Arguments, "--air_public_input")
		data := fmt.Sprintf(`{"layout": %q, "n_steps": %d}`, layout, s.nSteps)
		if err := os.WriteFile(pub, []byte(data), 0644); err != nil {
			return nil, err
		}
	case "prover":
		paramFile := argValue(cmd.Arguments, "--parameter_file")
		doc, err := params.Load(paramFile)
		if err != nil {
			return nil, err
		}
		steps, err := doc.StepList()
		if err != nil {
			return nil, err
		}
		if s.seenParamFiles == nil {
			s.seenParamFiles = make(map[string][]int)
		}
		s.seenParamFiles[layout] = steps

		out := argValue(cmd.Arguments, "--out_file")
		if err := os.WriteFile(out, []byte(`{"proof_hex": "0x0"}`), 0644); err != nil {
			return nil, err
		}
	}
	return ok, nil
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newTestPipeline(t *testing.T, script *scriptedExecutor, layouts ...string) *Pipeline {
	t.Helper()
	dir := t.TempDir()

	paramPath := filepath.Join(dir, "cpu_air_params.json")
	require.NoError(t, os.WriteFile(paramPath, []byte(baselineJSON), 0644))

	cfg := config.DefaultConfig()
	cfg.Paths.ParameterFile = paramPath
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Layouts = layouts

	tc := toolchain.New(toolchain.DefaultOptions(), script)

	p, err := New(cfg, tc)
	require.NoError(t, err)
	return p
}

func TestPipeline_Run(t *testing.T) {
	script := &scriptedExecutor{nSteps: 1024}
	p := newTestPipeline(t, script, "small", "starknet")

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.AllSucceeded())
	require.Len(t, report.Results, 2)

	for _, res := range report.Results {
		assert.Equal(t, StageDone, res.Stage)
		assert.Equal(t, 1024, res.NSteps)
		assert.Equal(t, []int{0, 4, 4, 4}, res.StepList)
		assert.FileExists(t, res.ProofPath)
		assert.Equal(t, ProofFileName, filepath.Base(res.ProofPath))
	}

	// The prover must have seen the recomputed schedule: n_steps=1024 with
	// last_layer_degree_bound=4 gives [0, 4, 4, 4].
	assert.Equal(t, []int{0, 4, 4, 4}, script.seenParamFiles["small"])
	assert.Equal(t, []int{0, 4, 4, 4}, script.seenParamFiles["starknet"])
}

func TestPipeline_PatchedFileDiffersOnlyInStepList(t *testing.T) {
	script := &scriptedExecutor{nSteps: 1024}
	p := newTestPipeline(t, script, "small")

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.AllSucceeded())

	// Every baseline field except the step list must reach the prover
	// untouched; check a couple of representative ones.
	var baseline map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(baselineJSON), &baseline))

	patched, err := p.baseline.Patch(1024)
	require.NoError(t, err)

	stark := patched.Root()["stark"].(map[string]interface{})
	friSection := stark["fri"].(map[string]interface{})
	assert.Equal(t, float64(18), friSection["n_queries"])
	assert.Equal(t, float64(4), friSection["last_layer_degree_bound"])
	assert.Equal(t, "PrimeField0", patched.Root()["field"])
}

func TestPipeline_FailureDoesNotAbortOtherLayouts(t *testing.T) {
	script := &scriptedExecutor{nSteps: 1024, failCompileFor: "dex"}
	p := newTestPipeline(t, script, "dex", "small")

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.False(t, report.AllSucceeded())
	assert.Equal(t, 1, report.Succeeded())

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, toolchain.Layout("dex"), failed[0].Layout)
	assert.Equal(t, StageCompile, failed[0].Stage)

	var toolErr *toolchain.ToolError
	require.ErrorAs(t, failed[0].Err, &toolErr)
	assert.Equal(t, 2, toolErr.ExitCode)

	// The healthy layout still produced its proof.
	assert.Equal(t, StageDone, report.Results[1].Stage)
	assert.FileExists(t, report.Results[1].ProofPath)
}

func TestPipeline_ScratchRemovedOnSuccessAndFailure(t *testing.T) {
	script := &scriptedExecutor{nSteps: 0} // forces a patch-stage failure
	p := newTestPipeline(t, script, "small")

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.False(t, report.AllSucceeded())
	assert.Equal(t, StagePatch, report.Results[0].Stage)

	script2 := &scriptedExecutor{nSteps: 1024}
	p2 := newTestPipeline(t, script2, "small")
	_, err = p2.Run(context.Background())
	require.NoError(t, err)

	for _, dir := range append(script.scratchDirs, script2.scratchDirs...) {
		assert.NoDirExists(t, dir, "scratch directory must be removed")
	}
}

func TestPipeline_KeepScratch(t *testing.T) {
	script := &scriptedExecutor{nSteps: 1024}
	p := newTestPipeline(t, script, "small")
	p.KeepScratch = true

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, script.scratchDirs, 1)
	assert.DirExists(t, script.scratchDirs[0])
	require.NoError(t, os.RemoveAll(script.scratchDirs[0]))
}

func TestPipeline_MissingNStepsFailsValidation(t *testing.T) {
	// A runner that omits n_steps yields 0, which must be rejected by the
	// schedule derivation rather than silently producing a wrong list.
	script := &scriptedExecutor{nSteps: 0}
	p := newTestPipeline(t, script, "small")

	result := p.ProcessLayout(context.Background(), toolchain.LayoutSmall)
	require.Error(t, result.Err)
	assert.Equal(t, StagePatch, result.Stage)
	assert.ErrorIs(t, result.Err, fri.ErrInvalidInput)
}

func TestPipeline_DefaultLayouts(t *testing.T) {
	p := newTestPipeline(t, &scriptedExecutor{nSteps: 1024})

	layouts, err := p.Layouts()
	require.NoError(t, err)
	assert.Equal(t, toolchain.DefaultLayouts(), layouts)
}

func TestPipeline_BadLayoutOverride(t *testing.T) {
	p := newTestPipeline(t, &scriptedExecutor{nSteps: 1024}, "groth16")

	_, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestPipeline_Commands(t *testing.T) {
	p := newTestPipeline(t, &scriptedExecutor{nSteps: 1024})

	cmds := p.Commands(toolchain.LayoutRecursive)
	require.Len(t, cmds, 3)
	assert.Equal(t, "cairo-compile", cmds[0].Binary)
	assert.Equal(t, "cairo-run", cmds[1].Binary)
	assert.Equal(t, "cpu_air_prover", cmds[2].Binary)
	assert.Contains(t, cmds[1].CommandString(), "<scratch>")
}

func TestReport_Summary(t *testing.T) {
	script := &scriptedExecutor{nSteps: 1024, failCompileFor: "dex"}
	p := newTestPipeline(t, script, "dex", "small")

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	summary := report.Summary()
	assert.Contains(t, summary, "dex")
	assert.Contains(t, summary, "failed")
	assert.Contains(t, summary, "compile")
	assert.Contains(t, summary, "1/2 layouts succeeded")
}
