package module

import (
	"encoding/json"
	"fmt"
)

// Definition is one parsed module: a name, optional remarks, a format
// version marker, and a mapping from state name to raw state definition.
type Definition struct {
	Name    string
	Remarks []string
	Version int

	// States maps state name to the state's raw JSON object. The "type"
	// key holds the state-kind discriminant.
	States map[string]map[string]any
}

// rawDefinition is the JSON shape of a module source.
type rawDefinition struct {
	Name    string                    `json:"name"`
	Remarks []string                  `json:"remarks"`
	Version int                       `json:"gmf_version"`
	States  map[string]map[string]any `json:"states"`
}

// Parse reads a module definition from JSON source. It rejects sources
// missing the name or states fields; deeper structural validation is the
// engine's job.
func Parse(data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse module: %w", err)
	}
	if raw.Name == "" {
		return nil, fmt.Errorf("parse module: missing required field %q", "name")
	}
	if raw.States == nil {
		return nil, fmt.Errorf("parse module %q: missing required field %q", raw.Name, "states")
	}
	return &Definition{
		Name:    raw.Name,
		Remarks: raw.Remarks,
		Version: raw.Version,
		States:  raw.States,
	}, nil
}

// FromRaw builds a Definition from an already-decoded JSON-like tree.
// Used by the CUE loader, which decodes to the same shape.
func FromRaw(raw map[string]any) (*Definition, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode module tree: %w", err)
	}
	return Parse(data)
}

// State returns the raw definition of the named state and whether it exists.
func (d *Definition) State(name string) (map[string]any, bool) {
	s, ok := d.States[name]
	return s, ok
}

// StateType returns the type discriminant of the named state, or "" if the
// state or its type field is absent.
func (d *Definition) StateType(name string) string {
	s, ok := d.States[name]
	if !ok {
		return ""
	}
	t, _ := s["type"].(string)
	return t
}

// Clone returns a value-level deep copy of the definition. The clone shares
// no mutable substructure with the original: mutating any nested map or
// slice of one never affects the other.
func (d *Definition) Clone() *Definition {
	states := make(map[string]map[string]any, len(d.States))
	for name, state := range d.States {
		states[name] = deepCopyMap(state)
	}
	var remarks []string
	if d.Remarks != nil {
		remarks = append([]string(nil), d.Remarks...)
	}
	return &Definition{
		Name:    d.Name,
		Remarks: remarks,
		Version: d.Version,
		States:  states,
	}
}

// deepCopyMap deep-copies a JSON-like map.
func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

// deepCopyValue deep-copies a JSON-like value (maps, slices, scalars).
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		// Scalars (string, float64, bool, nil) are immutable.
		return val
	}
}
