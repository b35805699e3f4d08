package harness

import (
	"fmt"
	"reflect"
)

// Failure is one unmet expectation.
type Failure struct {
	Field   string
	Message string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// Check evaluates the scenario's expectations against a run result.
// Returns one failure per unmet expectation; an empty slice means the
// scenario passed.
func Check(s *Scenario, res *Result) []Failure {
	var failures []Failure

	if s.Expect.Finished != nil {
		got := res.Engine.Finished(res.Entity)
		if got != *s.Expect.Finished {
			failures = append(failures, Failure{
				Field:   "finished",
				Message: fmt.Sprintf("expected %v, got %v", *s.Expect.Finished, got),
			})
		}
	}

	if s.Expect.Path != nil {
		got := res.Engine.History(res.Entity)
		if !equalPaths(s.Expect.Path, got) {
			failures = append(failures, Failure{
				Field:   "path",
				Message: fmt.Sprintf("expected %v, got %v", s.Expect.Path, got),
			})
		}
	}

	for key, want := range s.Expect.Attributes {
		got, ok := res.Entity.Attribute(key)
		if !ok {
			failures = append(failures, Failure{
				Field:   "attributes." + key,
				Message: "not set",
			})
			continue
		}
		if !looselyEqual(want, got) {
			failures = append(failures, Failure{
				Field:   "attributes." + key,
				Message: fmt.Sprintf("expected %v, got %v", want, got),
			})
		}
	}

	return failures
}

func equalPaths(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// looselyEqual compares scenario YAML values against runtime values.
// Numbers compare by value across int/float representations, since YAML
// decodes integers where JSON modules produce float64.
func looselyEqual(want, got any) bool {
	if wf, ok := asFloat(want); ok {
		if gf, ok := asFloat(got); ok {
			return wf == gf
		}
		return false
	}
	return reflect.DeepEqual(want, got)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
