package loader

import (
	"fmt"
	"sync"

	"github.com/lifegraph/lifegraph/internal/module"
)

// Supplier is a lazily-parsed module source. The raw bytes and cheap
// metadata are held from construction; the full definition is parsed on
// first demand and cached until Invalidate.
type Supplier struct {
	// Path is the source file the supplier was loaded from, if any.
	Path string

	meta   module.Metadata
	source []byte

	mu     sync.Mutex
	cached *module.Definition
}

// NewSupplier wraps raw module source. The source must at least yield
// metadata; full parsing is deferred.
func NewSupplier(path string, source []byte) (*Supplier, error) {
	meta, err := module.Peek(source)
	if err != nil {
		return nil, fmt.Errorf("supplier %s: %w", path, err)
	}
	return &Supplier{Path: path, meta: meta, source: source}, nil
}

// NewSupplierFromDefinition wraps an already-parsed definition, for
// sources (CUE) that do not round-trip through JSON bytes.
func NewSupplierFromDefinition(path string, def *module.Definition) *Supplier {
	return &Supplier{
		Path:   path,
		meta:   module.Metadata{Name: def.Name, Remarks: def.Remarks, Version: def.Version},
		cached: def,
	}
}

// Metadata returns the source's pre-parse metadata.
func (s *Supplier) Metadata() module.Metadata {
	return s.meta
}

// Definition returns the parsed definition, parsing and caching it on
// first call. Callers must not mutate the returned value; use Copy for a
// private definition.
func (s *Supplier) Definition() (*module.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}
	def, err := module.Parse(s.source)
	if err != nil {
		return nil, fmt.Errorf("supplier %s: %w", s.Path, err)
	}
	s.cached = def
	return def, nil
}

// Copy returns an independent deep copy of the definition, safe for the
// caller to mutate or hand to a concurrent worker.
func (s *Supplier) Copy() (*module.Definition, error) {
	def, err := s.Definition()
	if err != nil {
		return nil, err
	}
	return def.Clone(), nil
}

// Invalidate drops the cached definition so the next Definition call
// re-parses the source. Suppliers built directly from a definition have
// no source to re-parse and keep their cache.
func (s *Supplier) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != nil {
		s.cached = nil
	}
}
