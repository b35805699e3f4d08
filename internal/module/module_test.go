package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSource = `{
  "name": "examplitis",
  "remarks": ["A minimal two-state module."],
  "gmf_version": 2,
  "states": {
    "Initial": {"type": "Initial", "direct_transition": "Done"},
    "Done": {"type": "Terminal"}
  }
}`

func TestParse(t *testing.T) {
	def, err := Parse([]byte(minimalSource))
	require.NoError(t, err)

	assert.Equal(t, "examplitis", def.Name)
	assert.Equal(t, []string{"A minimal two-state module."}, def.Remarks)
	assert.Equal(t, 2, def.Version)
	assert.Len(t, def.States, 2)
	assert.Equal(t, "Initial", def.StateType("Initial"))
	assert.Equal(t, "Terminal", def.StateType("Done"))
	assert.Equal(t, "", def.StateType("Missing"))
}

func TestParseRejectsMissingFields(t *testing.T) {
	_, err := Parse([]byte(`{"states": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")

	_, err = Parse([]byte(`{"name": "x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "states")

	_, err = Parse([]byte(`not json`))
	require.Error(t, err)
}

func TestParseEmptyStatesIsAccepted(t *testing.T) {
	// An empty states object is structurally valid; the engine reports the
	// missing Initial state, not the parser.
	def, err := Parse([]byte(`{"name": "x", "states": {}}`))
	require.NoError(t, err)
	assert.Empty(t, def.States)
}

func TestFromRaw(t *testing.T) {
	def, err := FromRaw(map[string]any{
		"name": "from_raw",
		"states": map[string]any{
			"Initial": map[string]any{"type": "Initial"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "from_raw", def.Name)
	assert.Equal(t, "Initial", def.StateType("Initial"))
}

func TestCloneIsDeep(t *testing.T) {
	def, err := Parse([]byte(`{
	  "name": "clone_me",
	  "states": {
	    "Initial": {
	      "type": "Initial",
	      "conditional_transition": [
	        {"condition": {"condition_type": "True"}, "transition": "Done"}
	      ]
	    },
	    "Done": {"type": "Terminal"}
	  }
	}`))
	require.NoError(t, err)

	clone := def.Clone()
	require.Equal(t, def.States, clone.States)

	// Mutate every nesting level of the clone; the original must not move.
	clone.States["Done"]["type"] = "Simple"
	clone.States["Initial"]["conditional_transition"].([]any)[0].(map[string]any)["transition"] = "Elsewhere"
	clone.States["New"] = map[string]any{"type": "Terminal"}

	assert.Equal(t, "Terminal", def.StateType("Done"))
	assert.Len(t, def.States, 2)
	opt := def.States["Initial"]["conditional_transition"].([]any)[0].(map[string]any)
	assert.Equal(t, "Done", opt["transition"])
}

func TestPeek(t *testing.T) {
	meta, err := Peek([]byte(minimalSource))
	require.NoError(t, err)
	assert.Equal(t, "examplitis", meta.Name)
	assert.Equal(t, 2, meta.Version)

	_, err = Peek([]byte(`{"states": {}}`))
	require.Error(t, err)
}

func TestToMillis(t *testing.T) {
	for _, tc := range []struct {
		quantity float64
		unit     string
		want     int64
	}{
		{1, "seconds", 1000},
		{2, "minutes", 120_000},
		{1, "hours", 3_600_000},
		{1, "days", 86_400_000},
		{1, "weeks", 604_800_000},
		{1, "months", 2_629_800_000},
		{1, "years", 31_557_600_000},
		{0.5, "days", 43_200_000},
	} {
		got, err := ToMillis(tc.quantity, tc.unit)
		require.NoError(t, err, "%v %s", tc.quantity, tc.unit)
		assert.Equal(t, tc.want, got, "%v %s", tc.quantity, tc.unit)
	}

	_, err := ToMillis(1, "fortnights")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fortnights")
}

func TestToYears(t *testing.T) {
	y, err := ToYears(12, "months")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, y, 0.0001)

	y, err = ToYears(365.25, "days")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, y, 0.0001)

	_, err = ToYears(1, "lightyears")
	require.Error(t, err)
}
