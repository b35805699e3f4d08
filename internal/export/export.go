// Package export renders entities as canonical JSON chronicle documents.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lifegraph/lifegraph/internal/engine"
	"github.com/lifegraph/lifegraph/internal/entity"
)

// Document renders one entity as a canonical JSON chronicle document.
// Engine bookkeeping keys in the attribute store are omitted; everything
// else the simulation recorded is present. Equal entities produce
// byte-identical documents.
func Document(e *entity.Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("export entity %s: %w", e.ID, err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("export entity %s: %w", e.ID, err)
	}

	if attrs, ok := tree["attributes"].(map[string]any); ok {
		for key := range attrs {
			if engine.IsBookkeepingKey(key) {
				delete(attrs, key)
			}
		}
		if len(attrs) == 0 {
			delete(tree, "attributes")
		}
	}

	doc, err := MarshalCanonical(tree)
	if err != nil {
		return nil, fmt.Errorf("export entity %s: %w", e.ID, err)
	}
	return doc, nil
}

// Exporter writes one document per entity into a directory.
type Exporter struct {
	dir string
}

// NewExporter creates the target directory if needed.
func NewExporter(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export directory: %w", err)
	}
	return &Exporter{dir: dir}, nil
}

// Export writes the entity's document to <dir>/<entity-id>.json.
func (x *Exporter) Export(e *entity.Entity) error {
	doc, err := Document(e)
	if err != nil {
		return err
	}
	path := filepath.Join(x.dir, e.ID+".json")
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("export entity %s: %w", e.ID, err)
	}
	return nil
}
