package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifegraph/lifegraph/internal/module"
)

const jsonModule = `{
  "name": "examplitis",
  "remarks": ["test module"],
  "states": {
    "Initial": {"type": "Initial", "direct_transition": "Done"},
    "Done": {"type": "Terminal"}
  }
}`

const cueModule = `
name: "cue_module"
states: {
	Initial: {
		type:              "Initial"
		direct_transition: "Done"
	}
	Done: type: "Terminal"
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "examplitis.json", jsonModule)
	writeFile(t, dir, "cue_module.cue", cueModule)
	writeFile(t, dir, "notes.txt", "ignored")

	lib, errs := LoadDirectory(dir)
	require.Empty(t, errs)
	assert.Equal(t, []string{"cue_module", "examplitis"}, lib.Names())

	s, ok := lib.Get("cue_module")
	require.True(t, ok)
	def, err := s.Definition()
	require.NoError(t, err)
	assert.Equal(t, "Initial", def.StateType("Initial"))
	assert.Equal(t, "Terminal", def.StateType("Done"))
}

func TestLoadDirectoryRecursesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "chronic")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "examplitis.json", jsonModule)

	lib, errs := LoadDirectory(dir)
	require.Empty(t, errs)
	assert.Equal(t, 1, lib.Len())
}

func TestLoadDirectoryCollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.json", jsonModule)
	writeFile(t, dir, "broken.json", `{"states": {}}`)
	writeFile(t, dir, "mangled.json", `{not json`)

	lib, errs := LoadDirectory(dir)
	assert.Len(t, errs, 2, "both bad sources reported")
	assert.Equal(t, 1, lib.Len(), "the good source still loads")
}

func TestLoadDirectoryDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", jsonModule)
	writeFile(t, dir, "b.json", jsonModule)

	_, errs := LoadDirectory(dir)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "duplicate module")
}

func TestLoadDirectoryMissing(t *testing.T) {
	_, errs := LoadDirectory(filepath.Join(t.TempDir(), "nope"))
	require.NotEmpty(t, errs)
}

func TestSupplierLazyParseAndInvalidate(t *testing.T) {
	s, err := NewSupplier("examplitis.json", []byte(jsonModule))
	require.NoError(t, err)
	assert.Equal(t, "examplitis", s.Metadata().Name)

	first, err := s.Definition()
	require.NoError(t, err)
	again, err := s.Definition()
	require.NoError(t, err)
	assert.Same(t, first, again, "parse is cached")

	s.Invalidate()
	fresh, err := s.Definition()
	require.NoError(t, err)
	assert.NotSame(t, first, fresh, "invalidate drops the cache")
	assert.Equal(t, first.States, fresh.States)
}

func TestSupplierCopyIsIndependent(t *testing.T) {
	s, err := NewSupplier("examplitis.json", []byte(jsonModule))
	require.NoError(t, err)

	a, err := s.Copy()
	require.NoError(t, err)
	a.States["Done"]["type"] = "Simple"

	b, err := s.Copy()
	require.NoError(t, err)
	assert.Equal(t, "Terminal", b.StateType("Done"))
}

func TestSupplierRejectsUnnamedSource(t *testing.T) {
	_, err := NewSupplier("x.json", []byte(`{"states": {}}`))
	require.Error(t, err)
}

func overrideTestDefinition(t *testing.T) *module.Definition {
	t.Helper()
	def, err := module.Parse([]byte(`{
	  "name": "examplitis",
	  "states": {
	    "Maybe_Sick": {
	      "type": "Simple",
	      "distributed_transition": [
	        {"distribution": 0.1, "transition": "Sick"},
	        {"distribution": 0.9, "transition": "Well"}
	      ]
	    },
	    "Sick": {"type": "Terminal"},
	    "Well": {"type": "Terminal"}
	  }
	}`))
	require.NoError(t, err)
	return def
}

func TestParseOverrides(t *testing.T) {
	overrides, err := ParseOverrides([]byte(`
overrides:
  - module: examplitis
    state: Maybe_Sick
    path: distributed_transition.0.distribution
    value: 0.5
  - module: "*"
    path: Sick.type
    value: Simple
`))
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, "examplitis", overrides[0].Module)
	assert.Equal(t, "Maybe_Sick", overrides[0].State)
	assert.Equal(t, 0.5, overrides[0].Value)
	assert.Equal(t, "*", overrides[1].Module)
}

func TestParseOverridesRejectsIncomplete(t *testing.T) {
	_, err := ParseOverrides([]byte("overrides:\n  - path: a.b\n    value: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing module")

	_, err = ParseOverrides([]byte("overrides:\n  - module: m\n    value: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing path")
}

func TestApplyOverridesListIndexPath(t *testing.T) {
	def := overrideTestDefinition(t)
	out := ApplyOverrides(def, []Override{
		{Module: "examplitis", State: "Maybe_Sick", Path: "distributed_transition.0.distribution", Value: 0.5},
		{Module: "examplitis", State: "Maybe_Sick", Path: "distributed_transition.1.distribution", Value: 0.5},
	})

	dist := out.States["Maybe_Sick"]["distributed_transition"].([]any)
	assert.Equal(t, 0.5, dist[0].(map[string]any)["distribution"])
	assert.Equal(t, 0.5, dist[1].(map[string]any)["distribution"])

	// The input is untouched.
	orig := def.States["Maybe_Sick"]["distributed_transition"].([]any)
	assert.Equal(t, 0.1, orig[0].(map[string]any)["distribution"])
}

func TestApplyOverridesWildcardAndStateInPath(t *testing.T) {
	def := overrideTestDefinition(t)
	out := ApplyOverrides(def, []Override{
		{Module: "*", Path: "Sick.type", Value: "Simple"},
	})
	assert.Equal(t, "Simple", out.StateType("Sick"))
}

func TestApplyOverridesSkipsNonMatching(t *testing.T) {
	def := overrideTestDefinition(t)
	out := ApplyOverrides(def, []Override{
		{Module: "other_module", State: "Maybe_Sick", Path: "type", Value: "Guard"},
		{Module: "examplitis", State: "No_Such_State", Path: "type", Value: "Guard"},
		{Module: "examplitis", State: "Maybe_Sick", Path: "distributed_transition.7.distribution", Value: 1.0},
		{Module: "examplitis", State: "Maybe_Sick", Path: "no.such.path", Value: 1.0},
		{Module: "examplitis", State: "Maybe_Sick", Path: "no_such_knob", Value: 1.0},
	})
	assert.Equal(t, def.States, out.States, "all directives skipped without error")
	assert.NotContains(t, out.States["Maybe_Sick"], "no_such_knob",
		"a missing final key is skipped, not inserted")
}
