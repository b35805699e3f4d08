package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance test: an entity, a module walk
// schedule, and the expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden
	// trace file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Entity fixes the simulated individual the module runs against.
	Entity EntitySpec `yaml:"entity"`

	// Steps are the activation instants, as day offsets from the
	// scenario's reference time, in ascending order.
	Steps []Step `yaml:"steps"`

	// Expect validates the final state after the last step.
	Expect Expect `yaml:"expect,omitempty"`
}

// EntitySpec pins every input that feeds the entity's random stream and
// demographics, so runs are reproducible.
type EntitySpec struct {
	Seed     int64          `yaml:"seed"`
	AgeYears float64        `yaml:"age_years"`
	Gender   string         `yaml:"gender"`
	Attrs    map[string]any `yaml:"attributes,omitempty"`
}

// Step is one engine activation.
type Step struct {
	// AtDays is the instant of this activation, in days after the
	// reference time.
	AtDays float64 `yaml:"at_days"`
}

// Expect validates the run's final state. Zero-valued fields are not
// checked.
type Expect struct {
	// Finished asserts whether the run reached a terminal state.
	Finished *bool `yaml:"finished,omitempty"`

	// Path asserts the exact visited-state history.
	Path []string `yaml:"path,omitempty"`

	// Attributes asserts a subset of the entity's final attributes.
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates YAML scenario source.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("parse scenario: missing name")
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("parse scenario %q: no steps", s.Name)
	}
	for i := 1; i < len(s.Steps); i++ {
		if s.Steps[i].AtDays < s.Steps[i-1].AtDays {
			return nil, fmt.Errorf("parse scenario %q: step %d moves backward in time", s.Name, i)
		}
	}
	if s.Entity.Gender == "" {
		s.Entity.Gender = "F"
	}
	return &s, nil
}
