package harness

import (
	"fmt"

	"github.com/lifegraph/lifegraph/internal/engine"
	"github.com/lifegraph/lifegraph/internal/entity"
	"github.com/lifegraph/lifegraph/internal/module"
)

// ReferenceTime anchors every scenario: step offsets and entity ages are
// relative to this fixed instant (2020-01-01T00:00:00Z), keeping traces
// byte-stable across machines and wall-clock time.
const ReferenceTime = int64(1577836800000)

const millisPerDay = 24 * 60 * 60 * 1000

// TraceEvent records the run status after one activation.
type TraceEvent struct {
	AtDays   float64  `json:"at_days"`
	Path     []string `json:"path"`
	Current  string   `json:"current,omitempty"` // "" once terminal
	Finished bool     `json:"finished"`
}

// Trace is the full deterministic record of one scenario run.
type Trace struct {
	Scenario string       `json:"scenario"`
	Module   string       `json:"module"`
	Events   []TraceEvent `json:"events"`
}

// Result is a completed scenario run.
type Result struct {
	Trace  *Trace
	Entity *entity.Entity
	Engine *engine.Engine
}

// Run walks the module with the scenario's entity at each scheduled
// instant and returns the trace. The engine is clean per run; nothing
// persists between scenarios.
func Run(def *module.Definition, s *Scenario) (*Result, error) {
	eng, err := engine.New(def.Clone())
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}

	birth := ReferenceTime - int64(s.Entity.AgeYears*365.25*millisPerDay)
	ent := entity.New("scenario-"+s.Name, s.Entity.Seed, birth, s.Entity.Gender, "white", "nonhispanic")
	for key, value := range s.Entity.Attrs {
		ent.SetAttribute(key, value)
	}

	trace := &Trace{Scenario: s.Name, Module: def.Name}
	for _, step := range s.Steps {
		at := ReferenceTime + int64(step.AtDays*millisPerDay)
		if err := eng.Process(ent, at); err != nil {
			return nil, fmt.Errorf("scenario %q at day %v: %w", s.Name, step.AtDays, err)
		}
		trace.Events = append(trace.Events, TraceEvent{
			AtDays:   step.AtDays,
			Path:     append([]string(nil), eng.History(ent)...),
			Current:  currentStateName(eng, ent),
			Finished: eng.Finished(ent),
		})
	}

	return &Result{Trace: trace, Entity: ent, Engine: eng}, nil
}

// currentStateName reports where the run is parked: the state awaiting a
// resume decision, or "" once the run has retired.
func currentStateName(eng *engine.Engine, ent *entity.Entity) string {
	if v, ok := ent.Attribute(engine.ContextKey(eng.Name())); ok {
		if ctx, ok := v.(*engine.Context); ok && ctx.Current != nil {
			return ctx.Current.Name()
		}
	}
	return ""
}
