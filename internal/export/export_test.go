package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifegraph/lifegraph/internal/engine"
	"github.com/lifegraph/lifegraph/internal/entity"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"zebra": 1,
		"apple": 2,
		"mango": map[string]any{"b": true, "a": false},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"apple":2,"mango":{"a":false,"b":true},"zebra":1}`, string(got))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"note": "a<b && c>d"})
	require.NoError(t, err)
	assert.Equal(t, `{"note":"a<b && c>d"}`, string(got))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// "é" composed (U+00E9) and decomposed (e + U+0301) must serialize
	// identically.
	composed, err := MarshalCanonical("café")
	require.NoError(t, err)
	decomposed, err := MarshalCanonical("café")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalNumbers(t *testing.T) {
	got, err := MarshalCanonical([]any{1.0, 2.5, int64(7), 0.1})
	require.NoError(t, err)
	assert.Equal(t, `[1,2.5,7,0.1]`, string(got))
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	tree := map[string]any{"k1": []any{"a", "b"}, "k2": 3.14, "k3": nil}
	a, err := MarshalCanonical(tree)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := MarshalCanonical(tree)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func testEntity() *entity.Entity {
	e := entity.New("doc-entity", 7, 946684800000, entity.GenderMale, "white", "nonhispanic")
	e.SetAttribute("diabetic", true)
	e.Record.StartEncounter(1600000000000, "ambulatory", entity.Code{System: "SNOMED-CT", Code: "185349003", Display: "Encounter for check up"})
	e.Record.StartCondition(1600000000000, entity.Code{System: "SNOMED-CT", Code: "44054006", Display: "Diabetes"})
	e.Record.EndEncounter(1600003600000, nil)
	return e
}

func TestDocumentOmitsBookkeepingKeys(t *testing.T) {
	e := testEntity()
	e.SetAttribute(engine.ContextKey("examplitis"), map[string]any{"current": "Delay"})

	doc, err := Document(e)
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, json.Unmarshal(doc, &tree))
	attrs, ok := tree["attributes"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, attrs, "diabetic")
	assert.Len(t, attrs, 1, "bookkeeping keys are stripped")
}

func TestDocumentStableAcrossCalls(t *testing.T) {
	e := testEntity()
	a, err := Document(e)
	require.NoError(t, err)
	b, err := Document(e)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExporterWritesPerEntityFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	x, err := NewExporter(dir)
	require.NoError(t, err)

	e := testEntity()
	require.NoError(t, x.Export(e))

	data, err := os.ReadFile(filepath.Join(dir, "doc-entity.json"))
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, json.Unmarshal(data, &tree))
	assert.Equal(t, "doc-entity", tree["id"])
	record, ok := tree["record"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, record, "encounters")
	assert.Contains(t, record, "conditions")
}
