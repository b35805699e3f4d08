package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// AssertGolden compares the trace against its golden file under
// testdata/golden/<scenario>.golden. Regenerate with `go test -update`.
func AssertGolden(t *testing.T, trace *Trace) {
	t.Helper()

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, trace.Scenario, data)
}
