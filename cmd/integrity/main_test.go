package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neotheprogramist/integrity/internal/params"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"prove", "fri-steps", "patch-params", "layouts"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}

func TestProveFlags(t *testing.T) {
	for _, flag := range []string{"layouts", "strict", "keep-scratch", "dry-run"} {
		assert.NotNil(t, proveCmd.Flags().Lookup(flag), "prove is missing --%s", flag)
	}
}

func TestRunFriSteps(t *testing.T) {
	friNSteps = 1024
	friBound = 4
	require.NoError(t, runFriSteps(friStepsCmd, nil))

	friNSteps = 0
	assert.Error(t, runFriSteps(friStepsCmd, nil))
}

func TestRunPatchParams(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()

	baseline := filepath.Join(dir, "cpu_air_params.json")
	require.NoError(t, os.WriteFile(baseline, []byte(`{
		"stark": {"fri": {"fri_step_list": [0, 4], "last_layer_degree_bound": 4}}
	}`), 0644))
	t.Setenv("INTEGRITY_PARAMETER_FILE", baseline)

	pubInput := filepath.Join(dir, "public_input.json")
	require.NoError(t, os.WriteFile(pubInput, []byte(`{"n_steps": 1024}`), 0644))

	patchPublicInput = pubInput
	patchNSteps = 0
	patchOut = filepath.Join(dir, "updated_cpu_air_params.json")

	require.NoError(t, runPatchParams(patchParamsCmd, nil))

	doc, err := params.Load(patchOut)
	require.NoError(t, err)
	steps, err := doc.StepList()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 4, 4}, steps)
}

func TestRunPatchParams_RequiresInput(t *testing.T) {
	logger = zap.NewNop()
	patchPublicInput = ""
	patchNSteps = 0

	assert.Error(t, runPatchParams(patchParamsCmd, nil))
}
