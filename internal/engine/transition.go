package engine

import (
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"
)

// weightTolerance is the allowed deviation of a distributed option set's
// weight sum from 1.0.
const weightTolerance = 0.001

// Transition selects the next state name from the current one.
// Follow returns "" when no option matches (a dead end the engine treats
// as a silent stall, not an error).
type Transition interface {
	Follow(env evalEnv) (string, error)

	// Targets returns every state name this transition can reach.
	// Used by validation.
	Targets() []string
}

// === Direct ===

// DirectTransition unconditionally names a fixed next state.
type DirectTransition struct {
	To string
}

// Follow implements Transition. Never returns "".
func (t *DirectTransition) Follow(evalEnv) (string, error) {
	return t.To, nil
}

// Targets implements Transition.
func (t *DirectTransition) Targets() []string {
	return []string{t.To}
}

// === Conditional ===

type conditionalOption struct {
	Condition *ConditionDef
	To        string
}

// ConditionalTransition is an ordered list of guarded targets. The first
// option whose condition holds (or is absent, the conventional fallback)
// wins.
type ConditionalTransition struct {
	Options []conditionalOption
}

// Follow implements Transition.
func (t *ConditionalTransition) Follow(env evalEnv) (string, error) {
	for _, opt := range t.Options {
		ok, err := evaluate(opt.Condition, env)
		if err != nil {
			return "", err
		}
		if ok {
			return opt.To, nil
		}
	}
	return "", nil
}

// Targets implements Transition.
func (t *ConditionalTransition) Targets() []string {
	targets := make([]string, 0, len(t.Options))
	for _, opt := range t.Options {
		targets = append(targets, opt.To)
	}
	return targets
}

// === Distributed ===

type distributedOption struct {
	// Weight is the option's probability mass. When Attribute is set the
	// weight is read from the entity's attribute store at follow time,
	// falling back to Weight.
	Weight    float64
	Attribute string
	To        string
}

// DistributedTransition selects among weighted targets by inverse-CDF
// sampling from the entity's random stream. The stream is advanced exactly
// once per Follow, so a fixed entity seed and call order reproduce the
// same path on every run.
type DistributedTransition struct {
	Options []distributedOption
}

// Follow implements Transition. Never returns "" (floating-point overshoot
// falls back to the last option; kept for compatibility with upstream
// behavior).
func (t *DistributedTransition) Follow(env evalEnv) (string, error) {
	r := env.entity.Rand().Next()

	cumulative := 0.0
	for _, opt := range t.Options {
		weight := opt.Weight
		if opt.Attribute != "" {
			if v, ok := env.entity.Attribute(opt.Attribute); ok {
				if w, isNum := asNumber(v); isNum {
					weight = w
				}
			}
		}
		cumulative += weight
		if r < cumulative {
			return opt.To, nil
		}
	}
	return t.Options[len(t.Options)-1].To, nil
}

// Targets implements Transition.
func (t *DistributedTransition) Targets() []string {
	targets := make([]string, 0, len(t.Options))
	for _, opt := range t.Options {
		targets = append(targets, opt.To)
	}
	return targets
}

// checkWeights verifies the static weight sum is 1.0 within tolerance.
// Options with attribute-driven weights are not statically checkable and
// exempt the option set.
func (t *DistributedTransition) checkWeights() error {
	sum := 0.0
	for _, opt := range t.Options {
		if opt.Attribute != "" {
			return nil
		}
		sum += opt.Weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("distributed transition weights sum to %v, want 1.0 ±%v", sum, weightTolerance)
	}
	return nil
}

// === Complex ===

type complexOption struct {
	Condition     *ConditionDef
	Distributions *DistributedTransition
	To            string
}

// ComplexTransition is an ordered list of guarded sub-strategies: each
// option carries either a nested distribution or a plain target. The first
// option whose condition holds (or is absent) is invoked.
type ComplexTransition struct {
	Options []complexOption
}

// Follow implements Transition.
func (t *ComplexTransition) Follow(env evalEnv) (string, error) {
	for _, opt := range t.Options {
		ok, err := evaluate(opt.Condition, env)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if opt.Distributions != nil {
			return opt.Distributions.Follow(env)
		}
		return opt.To, nil
	}
	return "", nil
}

// Targets implements Transition.
func (t *ComplexTransition) Targets() []string {
	var targets []string
	for _, opt := range t.Options {
		if opt.Distributions != nil {
			targets = append(targets, opt.Distributions.Targets()...)
			continue
		}
		targets = append(targets, opt.To)
	}
	return targets
}

// === Decoding ===

// Raw JSON shapes for the four transition keys.
type rawConditionalOption struct {
	Condition  any    `mapstructure:"condition"`
	Transition string `mapstructure:"transition"`
}

type rawDistributedOption struct {
	Distribution any    `mapstructure:"distribution"`
	Transition   string `mapstructure:"transition"`
}

type rawComplexOption struct {
	Condition     any                    `mapstructure:"condition"`
	Distributions []rawDistributedOption `mapstructure:"distributions"`
	Transition    string                 `mapstructure:"transition"`
}

// decodeTransition extracts the transition specification from a raw state
// object. States carry exactly one of the four transition keys; none at
// all yields a nil Transition (Terminal, or a dead end).
func decodeTransition(state map[string]any) (Transition, error) {
	if raw, ok := state["direct_transition"]; ok {
		to, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("direct_transition must be a state name")
		}
		return &DirectTransition{To: to}, nil
	}

	if raw, ok := state["conditional_transition"]; ok {
		var opts []rawConditionalOption
		if err := mapstructure.Decode(raw, &opts); err != nil {
			return nil, fmt.Errorf("decode conditional_transition: %w", err)
		}
		t := &ConditionalTransition{}
		for _, opt := range opts {
			cond, err := decodeCondition(opt.Condition)
			if err != nil {
				return nil, err
			}
			t.Options = append(t.Options, conditionalOption{Condition: cond, To: opt.Transition})
		}
		return t, nil
	}

	if raw, ok := state["distributed_transition"]; ok {
		var opts []rawDistributedOption
		if err := mapstructure.Decode(raw, &opts); err != nil {
			return nil, fmt.Errorf("decode distributed_transition: %w", err)
		}
		return decodeDistributed(opts)
	}

	if raw, ok := state["complex_transition"]; ok {
		var opts []rawComplexOption
		if err := mapstructure.Decode(raw, &opts); err != nil {
			return nil, fmt.Errorf("decode complex_transition: %w", err)
		}
		t := &ComplexTransition{}
		for _, opt := range opts {
			cond, err := decodeCondition(opt.Condition)
			if err != nil {
				return nil, err
			}
			co := complexOption{Condition: cond, To: opt.Transition}
			if len(opt.Distributions) > 0 {
				dist, err := decodeDistributed(opt.Distributions)
				if err != nil {
					return nil, err
				}
				co.Distributions = dist
			}
			t.Options = append(t.Options, co)
		}
		return t, nil
	}

	return nil, nil
}

// decodeDistributed builds a DistributedTransition from raw options and
// checks the weight-sum invariant.
func decodeDistributed(opts []rawDistributedOption) (*DistributedTransition, error) {
	if len(opts) == 0 {
		return nil, fmt.Errorf("distributed transition has no options")
	}
	t := &DistributedTransition{}
	for _, opt := range opts {
		option := distributedOption{To: opt.Transition}
		switch dist := opt.Distribution.(type) {
		case map[string]any:
			// {"attribute": "...", "default": 0.5} - weight read from the
			// entity at follow time.
			attr, _ := dist["attribute"].(string)
			option.Attribute = attr
			if def, ok := asNumber(dist["default"]); ok {
				option.Weight = def
			}
			if attr == "" {
				return nil, fmt.Errorf("distribution object missing attribute name")
			}
		default:
			weight, ok := asNumber(dist)
			if !ok {
				return nil, fmt.Errorf("distribution must be a number or attribute object")
			}
			option.Weight = weight
		}
		t.Options = append(t.Options, option)
	}
	if err := t.checkWeights(); err != nil {
		return nil, err
	}
	return t, nil
}
