package module

import (
	"encoding/json"
	"fmt"
)

// Metadata is the cheap pre-parse view of a module source: enough to list
// and describe modules without materializing their state graphs.
type Metadata struct {
	Name    string   `json:"name"`
	Remarks []string `json:"remarks,omitempty"`
	Version int      `json:"gmf_version,omitempty"`
}

// Peek extracts metadata from a module source without building the state
// map. The states field is left undecoded.
func Peek(data []byte) (Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("peek module metadata: %w", err)
	}
	if meta.Name == "" {
		return Metadata{}, fmt.Errorf("peek module metadata: missing required field %q", "name")
	}
	return meta, nil
}
