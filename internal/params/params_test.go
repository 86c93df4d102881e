package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neotheprogramist/integrity/internal/fri"
)

const baselineJSON = `{
    "field": "PrimeField0",
    "channel_hash": "poseidon3",
    "commitment_hash": "keccak256_masked160_lsb",
    "n_verifier_friendly_commitment_layers": 9999,
    "pow_hash": "keccak256",
    "statement": {
        "page_hash": "none"
    },
    "stark": {
        "fri": {
            "fri_step_list": [0, 4, 4, 3],
            "last_layer_degree_bound": 64,
            "n_queries": 18,
            "proof_of_work_bits": 24
        },
        "log_n_cosets": 4
    },
    "use_extension_field": false,
    "verifier_friendly_channel_updates": true,
    "verifier_friendly_commitment_hash": "poseidon3"
}`

func loadBaseline(t *testing.T) Document {
	t.Helper()
	doc, err := Parse([]byte(baselineJSON))
	require.NoError(t, err)
	return doc
}

func TestDocument_Accessors(t *testing.T) {
	doc := loadBaseline(t)

	bound, err := doc.LastLayerDegreeBound()
	require.NoError(t, err)
	assert.Equal(t, 64, bound)

	steps, err := doc.StepList()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 4, 3}, steps)
}

func TestDocument_Patch(t *testing.T) {
	doc := loadBaseline(t)

	// n_steps=1024 -> stepsLog=10, bound=64 -> boundLog=6 -> total=8 -> [0,4,4]
	patched, err := doc.Patch(1024)
	require.NoError(t, err)

	steps, err := patched.StepList()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 4}, steps)
}

func TestDocument_PatchOnlyChangesStepList(t *testing.T) {
	doc := loadBaseline(t)

	patched, err := doc.Patch(1024)
	require.NoError(t, err)

	// Splice the original step list back in; the documents must then be
	// identical, proving nothing else was touched.
	original, err := doc.StepList()
	require.NoError(t, err)
	restored, err := patched.WithStepList(original)
	require.NoError(t, err)

	if diff := cmp.Diff(doc.Root(), restored.Root()); diff != "" {
		t.Errorf("patch changed fields beyond fri_step_list (-baseline +restored):\n%s", diff)
	}
}

func TestDocument_PatchDoesNotMutateBaseline(t *testing.T) {
	doc := loadBaseline(t)

	before, err := doc.StepList()
	require.NoError(t, err)

	_, err = doc.Patch(100)
	require.NoError(t, err)

	after, err := doc.StepList()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDocument_PatchIdempotent(t *testing.T) {
	doc := loadBaseline(t)

	first, err := doc.Patch(1024)
	require.NoError(t, err)
	second, err := doc.Patch(1024)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Root(), second.Root()); diff != "" {
		t.Errorf("patching is not a pure function of its inputs:\n%s", diff)
	}
}

func TestDocument_PatchRejectsZeroSteps(t *testing.T) {
	doc := loadBaseline(t)

	_, err := doc.Patch(0)
	assert.ErrorIs(t, err, fri.ErrInvalidInput)
}

func TestDocument_SaveRoundTrip(t *testing.T) {
	doc := loadBaseline(t)
	patched, err := doc.Patch(1024)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "updated_cpu_air_params.json")
	require.NoError(t, patched.Save(path))

	reloaded, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(patched.Root(), reloaded.Root()); diff != "" {
		t.Errorf("document changed across save/load:\n%s", diff)
	}
}

func TestDocument_MissingSections(t *testing.T) {
	doc, err := Parse([]byte(`{"stark": {}}`))
	require.NoError(t, err)

	_, err = doc.LastLayerDegreeBound()
	assert.Error(t, err)

	_, err = doc.Patch(1024)
	assert.Error(t, err)
}

func TestReadPublicInput(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "public_input.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"layout": "small", "n_steps": 16384}`), 0644))

	pub, err := ReadPublicInput(path)
	require.NoError(t, err)
	assert.Equal(t, 16384, pub.NSteps)
}

func TestReadPublicInput_MissingField(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "public_input.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"layout": "small"}`), 0644))

	pub, err := ReadPublicInput(path)
	require.NoError(t, err)
	assert.Equal(t, 0, pub.NSteps)
}

func TestReadPublicInput_Malformed(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "public_input.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0644))

	_, err := ReadPublicInput(path)
	assert.Error(t, err)

	_, err = ReadPublicInput(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
