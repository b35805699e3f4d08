package engine

import (
	"fmt"
	"sort"

	"github.com/lifegraph/lifegraph/internal/module"
)

// Validate checks the engine's definition for graph well-formedness:
// exactly one Initial state, every transition target resolving to a
// defined state, and every distributed option set's weights summing to 1.0
// within tolerance. All violations found are returned; validation never
// stops at the first.
func (e *Engine) Validate() []string {
	return ValidateDefinition(e.def)
}

// ValidateDefinition statically validates a module definition without
// requiring construction, so diagnostic tooling can report on modules an
// engine would refuse to build.
func ValidateDefinition(def *module.Definition) []string {
	var violations []string

	names := make([]string, 0, len(def.States))
	for name := range def.States {
		names = append(names, name)
	}
	sort.Strings(names)

	initials := 0
	for _, name := range names {
		raw := def.States[name]

		kind, _ := raw["type"].(string)
		if _, known := registry[kind]; !known {
			violations = append(violations, fmt.Sprintf("state %q: unknown state type %q", name, kind))
			continue
		}
		if kind == "Initial" {
			initials++
		}

		transition, err := decodeTransition(raw)
		if err != nil {
			violations = append(violations, fmt.Sprintf("state %q: %v", name, err))
			continue
		}
		if transition == nil {
			continue
		}
		for _, target := range transition.Targets() {
			if _, exists := def.States[target]; !exists {
				violations = append(violations, fmt.Sprintf("state %q: transition target %q does not exist", name, target))
			}
		}
	}

	if initials != 1 {
		violations = append(violations, fmt.Sprintf("module must have exactly one Initial state, found %d", initials))
	}

	return violations
}
