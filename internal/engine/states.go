package engine

// Control-flow state kinds: the states that steer the walk rather than
// append record entries.

// InitialState is the entry point of a module. Exactly one per module.
type InitialState struct {
	stateCore
}

// Process implements State. No-op, always advances.
func (s *InitialState) Process(stepEnv) (bool, error) {
	return true, nil
}

// TerminalState permanently retires the module for an entity. The engine
// handles the retirement; the state itself only refuses to advance.
type TerminalState struct {
	stateCore
}

// Process implements State.
func (s *TerminalState) Process(stepEnv) (bool, error) {
	return false, nil
}

// SimpleState is a no-op passthrough used purely for branching.
type SimpleState struct {
	stateCore
}

// Process implements State.
func (s *SimpleState) Process(stepEnv) (bool, error) {
	return true, nil
}

// GuardState blocks the walk until its allow condition holds. An absent
// condition allows immediately.
type GuardState struct {
	stateCore
	Allow *ConditionDef `mapstructure:"allow"`
}

// Process implements State.
func (s *GuardState) Process(env stepEnv) (bool, error) {
	return evaluate(s.Allow, env.evalEnv())
}

// DelayState stalls until a computed resume instant. The instant is fixed
// on first entry (exact duration, or a uniform sample from the range drawn
// from the entity's stream) and remembered across stalled calls.
type DelayState struct {
	stateCore
	Exact *quantityDef `mapstructure:"exact"`
	Range *rangeDef    `mapstructure:"range"`

	entered bool
	until   int64
}

// Process implements State.
func (s *DelayState) Process(env stepEnv) (bool, error) {
	if !s.entered {
		duration, err := sampleDuration(s.Exact, s.Range, env.entity.Rand())
		if err != nil {
			return false, env.evalErr("delay %q: %v", s.name, err)
		}
		s.entered = true
		s.until = env.time + duration
	}
	if env.time < s.until {
		return false, nil
	}
	// Re-arm for a future revisit of this state.
	s.entered = false
	return true, nil
}

// CallSubmoduleState runs another module inline. It advances once the
// submodule's run for this entity has reached its Terminal state; until
// then it stalls, resuming the submodule on each call.
type CallSubmoduleState struct {
	stateCore
	Submodule string `mapstructure:"submodule"`
}

// Process implements State.
func (s *CallSubmoduleState) Process(env stepEnv) (bool, error) {
	if env.engine.submodules == nil {
		return false, env.evalErr("state %q: no submodule resolver configured", s.name)
	}
	sub, err := env.engine.submodules(s.Submodule)
	if err != nil || sub == nil {
		return false, env.evalErr("state %q: unknown submodule %q", s.name, s.Submodule)
	}
	if err := sub.Process(env.entity, env.time); err != nil {
		return false, err
	}
	return sub.Finished(env.entity), nil
}

// SetAttributeState writes a literal value into the attribute store.
type SetAttributeState struct {
	stateCore
	Attribute string `mapstructure:"attribute"`
	Value     any    `mapstructure:"value"`
}

// Process implements State.
func (s *SetAttributeState) Process(env stepEnv) (bool, error) {
	env.entity.SetAttribute(s.Attribute, s.Value)
	return true, nil
}

// CounterState increments or decrements a numeric attribute.
type CounterState struct {
	stateCore
	Attribute string  `mapstructure:"attribute"`
	Action    string  `mapstructure:"action"`
	Amount    float64 `mapstructure:"amount"`
}

// Process implements State.
func (s *CounterState) Process(env stepEnv) (bool, error) {
	amount := s.Amount
	if amount == 0 {
		amount = 1
	}
	if s.Action == "decrement" {
		amount = -amount
	}

	current := 0.0
	if v, ok := env.entity.Attribute(s.Attribute); ok {
		if n, isNum := asNumber(v); isNum {
			current = n
		}
	}
	env.entity.SetAttribute(s.Attribute, current+amount)
	return true, nil
}

// SymptomState sets the severity (0-100) of a named symptom, attributed to
// a cause (defaulting to the module name).
type SymptomState struct {
	stateCore
	Symptom string `mapstructure:"symptom"`
	Cause   string `mapstructure:"cause"`
	Exact   *struct {
		Quantity int `mapstructure:"quantity"`
	} `mapstructure:"exact"`
	Range *struct {
		Low  int `mapstructure:"low"`
		High int `mapstructure:"high"`
	} `mapstructure:"range"`
}

// Process implements State.
func (s *SymptomState) Process(env stepEnv) (bool, error) {
	severity := 0
	switch {
	case s.Exact != nil:
		severity = s.Exact.Quantity
	case s.Range != nil:
		severity = env.entity.Rand().NextInt(s.Range.Low, s.Range.High+1)
	}
	cause := s.Cause
	if cause == "" {
		cause = env.engine.Name()
	}
	env.entity.SetSymptom(cause, s.Symptom, severity)
	return true, nil
}

// VitalSignState sets a named vital sign on the entity. Vital signs live
// on the entity, not in the record; an Observation state reads them out.
type VitalSignState struct {
	stateCore
	VitalSign string       `mapstructure:"vital_sign"`
	Unit      string       `mapstructure:"unit"`
	Exact     *quantityDef `mapstructure:"exact"`
	Range     *rangeDef    `mapstructure:"range"`
}

// Process implements State.
func (s *VitalSignState) Process(env stepEnv) (bool, error) {
	value := 0.0
	switch {
	case s.Exact != nil:
		value = s.Exact.Quantity
	case s.Range != nil:
		value = env.entity.Rand().NextRange(s.Range.Low, s.Range.High)
	}
	env.entity.SetVital(s.VitalSign, value)
	return true, nil
}

// DeathState marks the entity dead, either immediately or after an
// exact-or-range delay from the current instant. Always advances; the
// surrounding generation loop decides what death means for other modules.
type DeathState struct {
	stateCore
	Exact *quantityDef `mapstructure:"exact"`
	Range *rangeDef    `mapstructure:"range"`
}

// Process implements State.
func (s *DeathState) Process(env stepEnv) (bool, error) {
	delay, err := sampleDuration(s.Exact, s.Range, env.entity.Rand())
	if err != nil {
		return false, env.evalErr("death %q: %v", s.name, err)
	}
	env.entity.RecordDeath(env.time + delay)
	return true, nil
}
