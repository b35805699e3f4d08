package engine

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/lifegraph/lifegraph/internal/entity"
	"github.com/lifegraph/lifegraph/internal/module"
)

// ConditionDef is the decoded form of a condition node. Which fields are
// meaningful depends on Type; unknown types fail at evaluation time.
type ConditionDef struct {
	Type string `mapstructure:"condition_type"`

	// Age / Symptom / Observation / Attribute comparison.
	Operator string  `mapstructure:"operator"`
	Quantity float64 `mapstructure:"quantity"`
	Unit     string  `mapstructure:"unit"`

	// Gender.
	Gender string `mapstructure:"gender"`

	// Attribute.
	Attribute string `mapstructure:"attribute"`
	Value     any    `mapstructure:"value"`

	// Symptom.
	Symptom string `mapstructure:"symptom"`

	// Observation / Active Condition / Active Medication / Active CarePlan /
	// Active Allergy.
	Codes []entity.Code `mapstructure:"codes"`

	// Date.
	Year int `mapstructure:"year"`

	// PriorState.
	Name string `mapstructure:"name"`

	// And / Or.
	Conditions []*ConditionDef `mapstructure:"conditions"`

	// Not.
	Condition *ConditionDef `mapstructure:"condition"`
}

// decodeCondition decodes a raw condition object.
func decodeCondition(raw any) (*ConditionDef, error) {
	if raw == nil {
		return nil, nil
	}
	var def ConditionDef
	if err := mapstructure.Decode(raw, &def); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}
	return &def, nil
}

// evalEnv is the environment a condition is evaluated against: the entity,
// the current instant, and the visited-state history of the enclosing
// module run (for PriorState).
type evalEnv struct {
	module  string
	entity  *entity.Entity
	time    int64
	history []string
}

func (env evalEnv) evalErr(format string, args ...any) error {
	return &EvaluationError{Module: env.module, Message: fmt.Sprintf(format, args...)}
}

// evaluate maps (condition, entity, time) to a boolean. A nil condition is
// vacuously true. Unknown condition kinds, operators, or time units
// propagate as EvaluationError - continuing would silently mis-simulate.
func evaluate(c *ConditionDef, env evalEnv) (bool, error) {
	if c == nil {
		return true, nil
	}

	switch c.Type {
	case "True":
		return true, nil

	case "False":
		return false, nil

	case "And":
		for _, sub := range c.Conditions {
			ok, err := evaluate(sub, env)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case "Or":
		for _, sub := range c.Conditions {
			ok, err := evaluate(sub, env)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case "Not":
		ok, err := evaluate(c.Condition, env)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case "Age":
		threshold, err := module.ToYears(c.Quantity, c.Unit)
		if err != nil {
			return false, env.evalErr("age condition: %v", err)
		}
		return compareNumeric(env.entity.AgeAt(env.time), threshold, c.Operator, env)

	case "Gender":
		return env.entity.Gender == c.Gender, nil

	case "Date":
		return compareNumeric(yearOf(env.time), float64(c.Year), c.Operator, env)

	case "Attribute":
		return evaluateAttribute(c, env)

	case "Symptom":
		severity := env.entity.SymptomSeverity(c.Symptom)
		return compareNumeric(float64(severity), c.Quantity, c.Operator, env)

	case "Observation":
		obs := env.entity.Record.LatestObservation(c.Codes)
		if obs == nil {
			return false, nil
		}
		value, ok := obs.NumericValue()
		if !ok {
			return false, nil
		}
		return compareNumeric(value, c.Quantity, c.Operator, env)

	case "Active Condition":
		return env.entity.Record.ActiveCondition(env.time, c.Codes) != nil, nil

	case "Active Medication":
		return env.entity.Record.ActiveMedication(env.time, c.Codes) != nil, nil

	case "Active CarePlan":
		return env.entity.Record.ActiveCarePlan(env.time, c.Codes) != nil, nil

	case "Active Allergy":
		return env.entity.Record.ActiveAllergy(env.time, c.Codes) != nil, nil

	case "PriorState":
		for _, visited := range env.history {
			if visited == c.Name {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, env.evalErr("unknown condition type %q", c.Type)
	}
}

// evaluateAttribute implements the Attribute condition: numeric comparison
// when an operator is given, strict equality (including type) otherwise.
// The "is nil" / "is not nil" operators test presence.
func evaluateAttribute(c *ConditionDef, env evalEnv) (bool, error) {
	value, present := env.entity.Attribute(c.Attribute)

	switch c.Operator {
	case "is nil":
		return !present || value == nil, nil
	case "is not nil":
		return present && value != nil, nil
	case "":
		if !present {
			return false, nil
		}
		return reflect.DeepEqual(value, c.Value), nil
	}

	if !present {
		return false, nil
	}
	actual, ok := asNumber(value)
	if !ok {
		// Non-numeric values only support equality semantics.
		switch c.Operator {
		case "==":
			return reflect.DeepEqual(value, c.Value), nil
		case "!=":
			return !reflect.DeepEqual(value, c.Value), nil
		}
		return false, nil
	}
	expected, ok := asNumber(c.Value)
	if !ok {
		return false, nil
	}
	return compareNumeric(actual, expected, c.Operator, env)
}

// compareNumeric applies a comparison operator token to two float64s.
func compareNumeric(a, b float64, op string, env evalEnv) (bool, error) {
	switch op {
	case "<":
		return a < b, nil
	case "<=":
		return a <= b, nil
	case ">":
		return a > b, nil
	case ">=":
		return a >= b, nil
	case "==":
		return a == b, nil
	case "!=":
		return a != b, nil
	default:
		return false, env.evalErr("unknown comparison operator %q", op)
	}
}

// asNumber coerces JSON-ish scalar types to float64.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// yearOf returns the calendar year of a millisecond timestamp, using the
// same fixed 365.25-day year as the rest of the time arithmetic.
func yearOf(at int64) float64 {
	const millisPerYear = module.DaysPerYear * 24 * 60 * 60 * 1000
	return 1970 + float64(at)/millisPerYear
}
