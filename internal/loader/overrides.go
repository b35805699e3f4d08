package loader

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lifegraph/lifegraph/internal/module"
)

// Override replaces one value inside a module definition. Module selects
// the target module by name, or "*" for every module. State names the
// state whose raw object the path walks; with State empty the path's
// first segment is the state name. Path segments are map keys, with
// decimal segments indexing into lists.
type Override struct {
	Module string `yaml:"module"`
	State  string `yaml:"state,omitempty"`
	Path   string `yaml:"path"`
	Value  any    `yaml:"value"`
}

// overrideFile is the YAML shape of an override file.
type overrideFile struct {
	Overrides []Override `yaml:"overrides"`
}

// ParseOverrides reads override directives from YAML source.
func ParseOverrides(data []byte) ([]Override, error) {
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	for i, o := range file.Overrides {
		if o.Module == "" {
			return nil, fmt.Errorf("parse overrides: directive %d missing module", i)
		}
		if o.Path == "" {
			return nil, fmt.Errorf("parse overrides: directive %d missing path", i)
		}
	}
	return file.Overrides, nil
}

// ApplyOverrides returns a copy of def with every applicable directive
// applied. The input definition is never mutated. Directives whose path
// does not resolve are skipped: overrides tune modules that have the
// addressed knob and pass through modules that do not.
func ApplyOverrides(def *module.Definition, overrides []Override) *module.Definition {
	out := def.Clone()
	for _, o := range overrides {
		if o.Module != "*" && o.Module != out.Name {
			continue
		}
		segments := strings.Split(o.Path, ".")
		if o.State != "" {
			state, ok := out.States[o.State]
			if !ok {
				continue
			}
			setPath(state, segments, o.Value)
			continue
		}
		if len(segments) < 2 {
			continue
		}
		state, ok := out.States[segments[0]]
		if !ok {
			continue
		}
		setPath(state, segments[1:], o.Value)
	}
	return out
}

// setPath walks node along segments and replaces the addressed value.
// Returns false when any segment fails to resolve.
func setPath(node any, segments []string, value any) bool {
	for i, seg := range segments {
		last := i == len(segments)-1
		switch n := node.(type) {
		case map[string]any:
			next, ok := n[seg]
			if !ok {
				// A missing key is a skip even at the final segment:
				// overrides replace existing knobs, never add new ones.
				return false
			}
			if last {
				n[seg] = value
				return true
			}
			node = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(n) {
				return false
			}
			if last {
				n[idx] = value
				return true
			}
			node = n[idx]
		default:
			return false
		}
	}
	return false
}
