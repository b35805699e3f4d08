package engine

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/lifegraph/lifegraph/internal/entity"
	"github.com/lifegraph/lifegraph/internal/module"
	"github.com/lifegraph/lifegraph/internal/rng"
)

// State is one node of a module graph: a unit of work plus a transition
// rule. Process returns shouldAdvance=false to stop the walk at this state
// ("stall") - the engine re-invokes the same instance from the same
// position on a later call. Terminal states always stall and are retired
// specially by the engine.
type State interface {
	// Name is the state's unique key within its module.
	Name() string

	// Kind is the state-type discriminant.
	Kind() string

	// Process performs the state's work against the entity at the given
	// instant and reports whether the walk may advance past it.
	Process(env stepEnv) (bool, error)

	// Transition is the state's transition rule; nil for Terminal and for
	// dead-end states.
	Transition() Transition
}

// stepEnv is the per-call environment a state processes in.
type stepEnv struct {
	engine *Engine
	ctx    *Context
	entity *entity.Entity
	time   int64
}

// evalEnv projects the step environment for condition evaluation.
func (s stepEnv) evalEnv() evalEnv {
	return evalEnv{
		module:  s.engine.Name(),
		entity:  s.entity,
		time:    s.time,
		history: s.ctx.History,
	}
}

func (s stepEnv) evalErr(format string, args ...any) error {
	return &EvaluationError{Module: s.engine.Name(), Message: fmt.Sprintf(format, args...)}
}

// stateCore carries the fields every state shares. Kind structs embed it.
type stateCore struct {
	name       string
	kind       string
	transition Transition
}

func (s *stateCore) Name() string           { return s.name }
func (s *stateCore) Kind() string           { return s.kind }
func (s *stateCore) Transition() Transition { return s.transition }

func (s *stateCore) setCore(core stateCore) { *s = core }

// coreSetter is implemented by every kind struct via the embedded stateCore.
type coreSetter interface {
	setCore(stateCore)
}

// registry maps the type discriminant to a zero-value constructor for the
// kind struct. The set is closed and known at module-load time.
var registry = map[string]func() State{
	"Initial":          func() State { return &InitialState{} },
	"Terminal":         func() State { return &TerminalState{} },
	"Simple":           func() State { return &SimpleState{} },
	"Guard":            func() State { return &GuardState{} },
	"Delay":            func() State { return &DelayState{} },
	"CallSubmodule":    func() State { return &CallSubmoduleState{} },
	"Encounter":        func() State { return &EncounterState{} },
	"EncounterEnd":     func() State { return &EncounterEndState{} },
	"ConditionOnset":   func() State { return &ConditionOnsetState{} },
	"ConditionEnd":     func() State { return &ConditionEndState{} },
	"AllergyOnset":     func() State { return &AllergyOnsetState{} },
	"AllergyEnd":       func() State { return &AllergyEndState{} },
	"MedicationOrder":  func() State { return &MedicationOrderState{} },
	"MedicationEnd":    func() State { return &MedicationEndState{} },
	"CarePlanStart":    func() State { return &CarePlanStartState{} },
	"CarePlanEnd":      func() State { return &CarePlanEndState{} },
	"Procedure":        func() State { return &ProcedureState{} },
	"Observation":      func() State { return &ObservationState{} },
	"MultiObservation": func() State { return &MultiObservationState{} },
	"DiagnosticReport": func() State { return &DiagnosticReportState{} },
	"ImagingStudy":     func() State { return &ImagingStudyState{} },
	"Device":           func() State { return &DeviceState{} },
	"DeviceEnd":        func() State { return &DeviceEndState{} },
	"Supply":           func() State { return &SupplyState{} },
	"Immunization":     func() State { return &ImmunizationState{} },
	"VitalSign":        func() State { return &VitalSignState{} },
	"SetAttribute":     func() State { return &SetAttributeState{} },
	"Counter":          func() State { return &CounterState{} },
	"Symptom":          func() State { return &SymptomState{} },
	"Death":            func() State { return &DeathState{} },
}

// newState materializes one state instance from its raw definition.
// Unknown type discriminants fail here, at construction time.
func newState(moduleName, stateName string, raw map[string]any) (State, error) {
	kind, _ := raw["type"].(string)
	construct, ok := registry[kind]
	if !ok {
		return nil, &ConfigurationError{
			Module:  moduleName,
			State:   stateName,
			Message: fmt.Sprintf("unknown state type %q", kind),
		}
	}

	st := construct()
	if err := mapstructure.Decode(raw, st); err != nil {
		return nil, &ConfigurationError{
			Module:  moduleName,
			State:   stateName,
			Message: fmt.Sprintf("decode state: %v", err),
		}
	}

	transition, err := decodeTransition(raw)
	if err != nil {
		return nil, &ConfigurationError{Module: moduleName, State: stateName, Message: err.Error()}
	}

	st.(coreSetter).setCore(stateCore{
		name:       stateName,
		kind:       kind,
		transition: transition,
	})
	return st, nil
}

// cloneState returns a value copy of a state instance. Config fields are
// shared read-only; state-local bookkeeping (a Delay's computed resume
// instant) is value-copied and re-armed by the per-instance entered flag.
func cloneState(s State) State {
	v := reflect.ValueOf(s).Elem()
	cp := reflect.New(v.Type())
	cp.Elem().Set(v)
	return cp.Interface().(State)
}

// quantityDef is an exact duration or quantity with a unit.
type quantityDef struct {
	Quantity float64 `mapstructure:"quantity"`
	Unit     string  `mapstructure:"unit"`
}

// rangeDef is a uniformly sampled range with a unit.
type rangeDef struct {
	Low  float64 `mapstructure:"low"`
	High float64 `mapstructure:"high"`
	Unit string  `mapstructure:"unit"`
}

// sampleDuration resolves an exact-or-range duration definition to
// milliseconds, drawing range samples from the given stream.
func sampleDuration(exact *quantityDef, rang *rangeDef, stream *rng.Stream) (int64, error) {
	switch {
	case exact != nil:
		return module.ToMillis(exact.Quantity, exact.Unit)
	case rang != nil:
		return module.ToMillis(stream.NextRange(rang.Low, rang.High), rang.Unit)
	default:
		return 0, nil
	}
}

// firstCode returns the primary code of a code list, or a zero Code.
func firstCode(codes []entity.Code) entity.Code {
	if len(codes) == 0 {
		return entity.Code{}
	}
	return codes[0]
}
