package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/lifegraph/lifegraph/internal/module"
)

// Library is the set of module suppliers loaded from a directory, keyed by
// module name.
type Library struct {
	suppliers map[string]*Supplier
}

// NewLibrary builds a library from explicit suppliers. Later suppliers
// with a duplicate module name are an error.
func NewLibrary(suppliers ...*Supplier) (*Library, error) {
	lib := &Library{suppliers: make(map[string]*Supplier, len(suppliers))}
	for _, s := range suppliers {
		name := s.Metadata().Name
		if _, dup := lib.suppliers[name]; dup {
			return nil, fmt.Errorf("duplicate module %q", name)
		}
		lib.suppliers[name] = s
	}
	return lib, nil
}

// LoadDirectory loads every .json and .cue module source under dir,
// recursively. All malformed sources are reported together rather than
// stopping at the first.
func LoadDirectory(dir string) (*Library, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("module directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("module directory: not a directory: %s", dir)}
	}

	var paths []string
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".json", ".cue":
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, []error{fmt.Errorf("scan module directory: %w", walkErr)}
	}
	sort.Strings(paths)

	var errs []error
	lib := &Library{suppliers: make(map[string]*Supplier, len(paths))}
	for _, path := range paths {
		s, err := loadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		name := s.Metadata().Name
		if prev, dup := lib.suppliers[name]; dup {
			errs = append(errs, fmt.Errorf("duplicate module %q: %s and %s", name, prev.Path, path))
			continue
		}
		lib.suppliers[name] = s
	}
	if len(lib.suppliers) == 0 && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no module sources found in %s", dir))
	}
	return lib, errs
}

func loadFile(path string) (*Supplier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		def, err := parseCUE(path, data)
		if err != nil {
			return nil, err
		}
		return NewSupplierFromDefinition(path, def), nil
	}
	return NewSupplier(path, data)
}

// parseCUE compiles one CUE source and decodes its value into the same
// tree shape a JSON module produces.
func parseCUE(path string, data []byte) (*module.Definition, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile module %s: %w", path, err)
	}
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode module %s: %w", path, err)
	}
	def, err := module.FromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", path, err)
	}
	return def, nil
}

// Get returns the supplier for the named module.
func (l *Library) Get(name string) (*Supplier, bool) {
	s, ok := l.suppliers[name]
	return s, ok
}

// Names returns the loaded module names in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.suppliers))
	for name := range l.suppliers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded modules.
func (l *Library) Len() int {
	return len(l.suppliers)
}
