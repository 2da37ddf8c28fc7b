// Package testcase loads the scripted acceptance tests sightline runs.
package testcase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultName is used when a test file omits its name.
const DefaultName = "Unnamed Test"

// Step is one instruction for the agent together with the outcome it must
// observe.
type Step struct {
	Description string `json:"description" yaml:"description"`
	Expected    string `json:"expected" yaml:"expected"`
}

// TestCase is a named, ordered list of steps. It is not modified after Load.
type TestCase struct {
	Name  string `json:"name" yaml:"name"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Load reads a test case from a JSON or YAML file. The format is chosen by
// extension; anything other than .yaml/.yml is parsed as JSON.
func Load(path string) (*TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("test file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read test file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes a JSON test case.
func ParseJSON(data []byte) (*TestCase, error) {
	var tc TestCase
	if err := json.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("failed to parse test file: %w", err)
	}
	tc.applyDefaults()
	return &tc, nil
}

// ParseYAML decodes a YAML test case.
func ParseYAML(data []byte) (*TestCase, error) {
	var tc TestCase
	if err := yaml.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("failed to parse test file: %w", err)
	}
	tc.applyDefaults()
	return &tc, nil
}

func (tc *TestCase) applyDefaults() {
	if strings.TrimSpace(tc.Name) == "" {
		tc.Name = DefaultName
	}
}

// Validate reports structural problems. A case with zero steps is valid and
// runs as the initial page load only.
func (tc *TestCase) Validate() error {
	for i, step := range tc.Steps {
		if strings.TrimSpace(step.Description) == "" {
			return fmt.Errorf("step %d: description is empty", i+1)
		}
	}
	return nil
}
