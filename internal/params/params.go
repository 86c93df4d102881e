// Package params loads and patches Stone prover parameter documents.
//
// The baseline cpu_air_params.json is treated as an opaque JSON document:
// every field except stark.fri.fri_step_list passes through untouched.
// Patching is a pure transform producing a new document, so a single loaded
// baseline can be reused across layouts without cross-contamination.
package params

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/neotheprogramist/integrity/internal/fri"
)

// Document is a parsed parameter file. The zero value is not usable; obtain
// one via Load or Parse.
type Document struct {
	root map[string]interface{}
}

// Load reads and parses a parameter file.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read parameter file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("parse parameter file %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a parameter document from raw JSON.
func Parse(data []byte) (Document, error) {
	var root map[string]interface{}
	if err := json.Unmarshal(data, &root); err != nil {
		return Document{}, err
	}
	return Document{root: root}, nil
}

// LastLayerDegreeBound returns stark.fri.last_layer_degree_bound.
func (d Document) LastLayerDegreeBound() (int, error) {
	friSection, err := d.friSection()
	if err != nil {
		return 0, err
	}
	raw, ok := friSection["last_layer_degree_bound"]
	if !ok {
		return 0, fmt.Errorf("parameter document missing stark.fri.last_layer_degree_bound")
	}
	num, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("stark.fri.last_layer_degree_bound is not a number: %T", raw)
	}
	return int(num), nil
}

// StepList returns stark.fri.fri_step_list.
func (d Document) StepList() ([]int, error) {
	friSection, err := d.friSection()
	if err != nil {
		return nil, err
	}
	raw, ok := friSection["fri_step_list"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter document missing stark.fri.fri_step_list")
	}
	steps := make([]int, 0, len(raw))
	for _, v := range raw {
		num, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("fri_step_list element is not a number: %T", v)
		}
		steps = append(steps, int(num))
	}
	return steps, nil
}

// Patch derives the folding schedule for nSteps from the document's own
// last_layer_degree_bound and returns a new document with
// stark.fri.fri_step_list replaced. The receiver is left unmodified.
func (d Document) Patch(nSteps int) (Document, error) {
	bound, err := d.LastLayerDegreeBound()
	if err != nil {
		return Document{}, err
	}
	steps, err := fri.StepList(nSteps, bound)
	if err != nil {
		return Document{}, err
	}
	return d.WithStepList(steps)
}

// WithStepList returns a deep copy of the document with
// stark.fri.fri_step_list set to steps.
func (d Document) WithStepList(steps []int) (Document, error) {
	clone := Document{root: deepCopy(d.root).(map[string]interface{})}
	friSection, err := clone.friSection()
	if err != nil {
		return Document{}, err
	}
	list := make([]interface{}, len(steps))
	for i, s := range steps {
		list[i] = float64(s)
	}
	friSection["fri_step_list"] = list
	return clone, nil
}

// Save writes the document as indented JSON.
func (d Document) Save(path string) error {
	data, err := json.MarshalIndent(d.root, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal parameter document: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write parameter file: %w", err)
	}
	return nil
}

// Root exposes the underlying document for diffing in tests.
func (d Document) Root() map[string]interface{} {
	return d.root
}

func (d Document) friSection() (map[string]interface{}, error) {
	stark, ok := d.root["stark"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter document missing stark section")
	}
	friSection, ok := stark["fri"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter document missing stark.fri section")
	}
	return friSection, nil
}

func deepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = deepCopy(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = deepCopy(inner)
		}
		return out
	default:
		return val
	}
}
