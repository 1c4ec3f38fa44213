package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/walletcore/internal/state"
)

// Scenario is one scripted run: a list of actions and the expectations that
// must hold once they have all been dispatched.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Actions are dispatched in order.
	Actions []ActionStep `yaml:"actions"`

	// Expect lists boolean expressions over the final view.
	Expect []string `yaml:"expect"`
}

// ActionStep is one action to dispatch.
type ActionStep struct {
	Type string `yaml:"type"`

	// Payload uses the payload struct's JSON field names. Unknown fields
	// are rejected at run time.
	Payload map[string]any `yaml:"payload,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown YAML fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, filepath.Base(prev))
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Validate checks required fields and that every action type is known.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Actions) == 0 {
		return fmt.Errorf("actions list is required and must be non-empty")
	}
	if len(s.Expect) == 0 {
		return fmt.Errorf("expect list is required and must be non-empty")
	}

	for i, step := range s.Actions {
		if step.Type == "" {
			return fmt.Errorf("actions[%d]: type is required", i)
		}
		if !state.KnownAction(state.ActionType(step.Type)) {
			return fmt.Errorf("actions[%d]: unknown action type %q", i, step.Type)
		}
	}
	for i, e := range s.Expect {
		if strings.TrimSpace(e) == "" {
			return fmt.Errorf("expect[%d]: expression is empty", i)
		}
	}
	return nil
}
