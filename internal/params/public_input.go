package params

import (
	"encoding/json"
	"fmt"
	"os"
)

// PublicInput holds the fields of the AIR public input file this pipeline
// cares about. The runner emits many more; they are ignored here.
type PublicInput struct {
	NSteps int `json:"n_steps"`
}

// ReadPublicInput parses the AIR public input file produced by the runner.
// A missing n_steps field reads as 0, which downstream validation rejects.
func ReadPublicInput(path string) (PublicInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PublicInput{}, fmt.Errorf("read public input: %w", err)
	}
	var pub PublicInput
	if err := json.Unmarshal(data, &pub); err != nil {
		return PublicInput{}, fmt.Errorf("parse public input %s: %w", path, err)
	}
	return pub, nil
}
