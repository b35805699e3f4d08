package engine

import (
	"github.com/google/uuid"

	"github.com/lifegraph/lifegraph/internal/entity"
)

// Record-entry state kinds: each appends a typed entry to the entity's
// record (or closes one), optionally cross-referencing the current
// encounter, and always advances.

// resolveReasonCode resolves a reason reference to a condition code. The
// reference names either an entity attribute holding a condition entry or
// a ConditionOnset state recorded in the run context.
func resolveReasonCode(env stepEnv, ref string) *entity.Code {
	if ref == "" {
		return nil
	}
	if v, ok := env.entity.Attribute(ref); ok {
		if cond, ok := v.(*entity.Condition); ok {
			code := cond.Code
			return &code
		}
	}
	if v, ok := env.ctx.Entries[ref]; ok {
		if cond, ok := v.(*entity.Condition); ok {
			code := cond.Code
			return &code
		}
	}
	return nil
}

// EncounterState begins an encounter and marks it current.
type EncounterState struct {
	stateCore
	Class    string        `mapstructure:"encounter_class"`
	Wellness bool          `mapstructure:"wellness"`
	Codes    []entity.Code `mapstructure:"codes"`
	Reason   string        `mapstructure:"reason"`
}

// Process implements State.
func (s *EncounterState) Process(env stepEnv) (bool, error) {
	class := s.Class
	if s.Wellness && class == "" {
		class = "wellness"
	}
	enc := env.entity.Record.StartEncounter(env.time, class, firstCode(s.Codes))
	enc.Reason = resolveReasonCode(env, s.Reason)
	return true, nil
}

// EncounterEndState closes the current encounter.
type EncounterEndState struct {
	stateCore
	Discharge *entity.Code `mapstructure:"discharge_disposition"`
}

// Process implements State.
func (s *EncounterEndState) Process(env stepEnv) (bool, error) {
	env.entity.Record.EndEncounter(env.time, s.Discharge)
	return true, nil
}

// ConditionOnsetState appends an open condition entry. The created entry
// is remembered under this state's name for later ConditionEnd / reason
// references, and optionally stashed into a named attribute.
type ConditionOnsetState struct {
	stateCore
	Codes  []entity.Code `mapstructure:"codes"`
	Assign string        `mapstructure:"assign_to_attribute"`
}

// Process implements State.
func (s *ConditionOnsetState) Process(env stepEnv) (bool, error) {
	cond := env.entity.Record.StartCondition(env.time, firstCode(s.Codes))
	env.ctx.Entries[s.name] = cond
	if s.Assign != "" {
		env.entity.SetAttribute(s.Assign, cond)
	}
	return true, nil
}

// ConditionEndState resolves a condition, referenced by onset state name,
// by attribute, or by code.
type ConditionEndState struct {
	stateCore
	ConditionOnset string        `mapstructure:"condition_onset"`
	Attribute      string        `mapstructure:"referenced_by_attribute"`
	Codes          []entity.Code `mapstructure:"codes"`
}

// Process implements State.
func (s *ConditionEndState) Process(env stepEnv) (bool, error) {
	switch {
	case s.ConditionOnset != "":
		if cond, ok := env.ctx.Entries[s.ConditionOnset].(*entity.Condition); ok && cond.End == 0 {
			cond.End = env.time
		}
	case s.Attribute != "":
		if v, ok := env.entity.Attribute(s.Attribute); ok {
			if cond, ok := v.(*entity.Condition); ok && cond.End == 0 {
				cond.End = env.time
			}
		}
	default:
		env.entity.Record.EndCondition(env.time, firstCode(s.Codes))
	}
	return true, nil
}

// AllergyOnsetState appends an open allergy entry.
type AllergyOnsetState struct {
	stateCore
	Codes  []entity.Code `mapstructure:"codes"`
	Assign string        `mapstructure:"assign_to_attribute"`
}

// Process implements State.
func (s *AllergyOnsetState) Process(env stepEnv) (bool, error) {
	allergy := env.entity.Record.StartAllergy(env.time, firstCode(s.Codes))
	env.ctx.Entries[s.name] = allergy
	if s.Assign != "" {
		env.entity.SetAttribute(s.Assign, allergy)
	}
	return true, nil
}

// AllergyEndState closes an allergy, referenced by onset state name, by
// attribute, or by code.
type AllergyEndState struct {
	stateCore
	AllergyOnset string        `mapstructure:"allergy_onset"`
	Attribute    string        `mapstructure:"referenced_by_attribute"`
	Codes        []entity.Code `mapstructure:"codes"`
}

// Process implements State.
func (s *AllergyEndState) Process(env stepEnv) (bool, error) {
	switch {
	case s.AllergyOnset != "":
		if a, ok := env.ctx.Entries[s.AllergyOnset].(*entity.Allergy); ok && a.End == 0 {
			a.End = env.time
		}
	case s.Attribute != "":
		if v, ok := env.entity.Attribute(s.Attribute); ok {
			if a, ok := v.(*entity.Allergy); ok && a.End == 0 {
				a.End = env.time
			}
		}
	default:
		env.entity.Record.EndAllergy(env.time, firstCode(s.Codes))
	}
	return true, nil
}

// MedicationOrderState appends an open medication order.
type MedicationOrderState struct {
	stateCore
	Codes    []entity.Code `mapstructure:"codes"`
	Reason   string        `mapstructure:"reason"`
	Assign   string        `mapstructure:"assign_to_attribute"`
	AsNeeded bool          `mapstructure:"as_needed"`
}

// Process implements State.
func (s *MedicationOrderState) Process(env stepEnv) (bool, error) {
	var reasons []entity.Code
	if code := resolveReasonCode(env, s.Reason); code != nil {
		reasons = []entity.Code{*code}
	}
	med := env.entity.Record.StartMedication(env.time, firstCode(s.Codes), reasons, s.AsNeeded)
	env.ctx.Entries[s.name] = med
	if s.Assign != "" {
		env.entity.SetAttribute(s.Assign, med)
	}
	return true, nil
}

// MedicationEndState closes a medication order, referenced by order state
// name, by attribute, or by code.
type MedicationEndState struct {
	stateCore
	MedicationOrder string        `mapstructure:"medication_order"`
	Attribute       string        `mapstructure:"referenced_by_attribute"`
	Codes           []entity.Code `mapstructure:"codes"`
	Stopped         *entity.Code  `mapstructure:"stopped"`
}

// Process implements State.
func (s *MedicationEndState) Process(env stepEnv) (bool, error) {
	switch {
	case s.MedicationOrder != "":
		if m, ok := env.ctx.Entries[s.MedicationOrder].(*entity.Medication); ok && m.End == 0 {
			m.End = env.time
			m.Stopped = s.Stopped
		}
	case s.Attribute != "":
		if v, ok := env.entity.Attribute(s.Attribute); ok {
			if m, ok := v.(*entity.Medication); ok && m.End == 0 {
				m.End = env.time
				m.Stopped = s.Stopped
			}
		}
	default:
		env.entity.Record.EndMedication(env.time, firstCode(s.Codes), s.Stopped)
	}
	return true, nil
}

// CarePlanStartState begins an open care plan with coded activities.
type CarePlanStartState struct {
	stateCore
	Codes      []entity.Code `mapstructure:"codes"`
	Activities []entity.Code `mapstructure:"activities"`
	Reason     string        `mapstructure:"reason"`
	Assign     string        `mapstructure:"assign_to_attribute"`
}

// Process implements State.
func (s *CarePlanStartState) Process(env stepEnv) (bool, error) {
	var reasons []entity.Code
	if code := resolveReasonCode(env, s.Reason); code != nil {
		reasons = []entity.Code{*code}
	}
	cp := env.entity.Record.StartCarePlan(env.time, firstCode(s.Codes), s.Activities, reasons)
	env.ctx.Entries[s.name] = cp
	if s.Assign != "" {
		env.entity.SetAttribute(s.Assign, cp)
	}
	return true, nil
}

// CarePlanEndState closes a care plan, referenced by start state name, by
// attribute, or by code.
type CarePlanEndState struct {
	stateCore
	CarePlan  string        `mapstructure:"careplan"`
	Attribute string        `mapstructure:"referenced_by_attribute"`
	Codes     []entity.Code `mapstructure:"codes"`
	Stopped   *entity.Code  `mapstructure:"stopped"`
}

// Process implements State.
func (s *CarePlanEndState) Process(env stepEnv) (bool, error) {
	switch {
	case s.CarePlan != "":
		if cp, ok := env.ctx.Entries[s.CarePlan].(*entity.CarePlan); ok && cp.End == 0 {
			cp.End = env.time
			cp.Stopped = s.Stopped
		}
	case s.Attribute != "":
		if v, ok := env.entity.Attribute(s.Attribute); ok {
			if cp, ok := v.(*entity.CarePlan); ok && cp.End == 0 {
				cp.End = env.time
				cp.Stopped = s.Stopped
			}
		}
	default:
		env.entity.Record.EndCarePlan(env.time, firstCode(s.Codes), s.Stopped)
	}
	return true, nil
}

// ProcedureState appends a performed procedure, optionally with a sampled
// duration.
type ProcedureState struct {
	stateCore
	Codes    []entity.Code `mapstructure:"codes"`
	Reason   string        `mapstructure:"reason"`
	Duration *rangeDef     `mapstructure:"duration"`
}

// Process implements State.
func (s *ProcedureState) Process(env stepEnv) (bool, error) {
	var reasons []entity.Code
	if code := resolveReasonCode(env, s.Reason); code != nil {
		reasons = []entity.Code{*code}
	}
	duration, err := sampleDuration(nil, s.Duration, env.entity.Rand())
	if err != nil {
		return false, env.evalErr("procedure %q: %v", s.name, err)
	}
	env.entity.Record.AddProcedure(env.time, firstCode(s.Codes), reasons, duration)
	return true, nil
}

// observationSpec is the value portion of an observation, shared by
// Observation and MultiObservation members. Value sources, in precedence
// order: exact quantity, sampled range, attribute lookup, vital sign.
type observationSpec struct {
	Codes    []entity.Code `mapstructure:"codes"`
	Category string        `mapstructure:"category"`
	Unit     string        `mapstructure:"unit"`
	Exact    *struct {
		Quantity any `mapstructure:"quantity"`
	} `mapstructure:"exact"`
	Range     *rangeDef `mapstructure:"range"`
	Attribute string    `mapstructure:"attribute"`
	VitalSign string    `mapstructure:"vital_sign"`
}

// resolveValue produces the observation value for an entity.
func (o *observationSpec) resolveValue(env stepEnv) any {
	switch {
	case o.Exact != nil:
		return o.Exact.Quantity
	case o.Range != nil:
		return env.entity.Rand().NextRange(o.Range.Low, o.Range.High)
	case o.Attribute != "":
		v, _ := env.entity.Attribute(o.Attribute)
		return v
	case o.VitalSign != "":
		v, _ := env.entity.Vital(o.VitalSign)
		return v
	default:
		return nil
	}
}

// ObservationState appends one observation entry.
type ObservationState struct {
	stateCore
	observationSpec `mapstructure:",squash"`
}

// Process implements State.
func (s *ObservationState) Process(env stepEnv) (bool, error) {
	env.entity.Record.AddObservation(env.time, firstCode(s.Codes), s.Category, s.Unit, s.resolveValue(env))
	return true, nil
}

// MultiObservationState appends a group of member observations followed by
// a grouping observation whose value is the member count.
type MultiObservationState struct {
	stateCore
	Codes        []entity.Code     `mapstructure:"codes"`
	Category     string            `mapstructure:"category"`
	Observations []observationSpec `mapstructure:"observations"`
}

// Process implements State.
func (s *MultiObservationState) Process(env stepEnv) (bool, error) {
	for i := range s.Observations {
		member := &s.Observations[i]
		env.entity.Record.AddObservation(env.time, firstCode(member.Codes), member.Category, member.Unit, member.resolveValue(env))
	}
	env.entity.Record.AddObservation(env.time, firstCode(s.Codes), s.Category, "", len(s.Observations))
	return true, nil
}

// DiagnosticReportState appends a report grouping the most recent N
// observations in the record.
type DiagnosticReportState struct {
	stateCore
	Codes                []entity.Code `mapstructure:"codes"`
	NumberOfObservations int           `mapstructure:"number_of_observations"`
}

// Process implements State.
func (s *DiagnosticReportState) Process(env stepEnv) (bool, error) {
	observations := env.entity.Record.Observations
	n := s.NumberOfObservations
	if n <= 0 || n > len(observations) {
		n = len(observations)
	}
	results := make([]*entity.Observation, n)
	copy(results, observations[len(observations)-n:])
	env.entity.Record.AddReport(env.time, firstCode(s.Codes), results)
	return true, nil
}

// imagingSeriesDef is one series of an imaging study definition.
type imagingSeriesDef struct {
	BodySite  entity.Code `mapstructure:"body_site"`
	Modality  entity.Code `mapstructure:"modality"`
	Instances int         `mapstructure:"instances"`
}

// ImagingStudyState appends a performed imaging study.
type ImagingStudyState struct {
	stateCore
	ProcedureCode entity.Code        `mapstructure:"procedure_code"`
	Series        []imagingSeriesDef `mapstructure:"series"`
}

// Process implements State.
func (s *ImagingStudyState) Process(env stepEnv) (bool, error) {
	series := make([]entity.ImagingSeries, len(s.Series))
	for i, def := range s.Series {
		series[i] = entity.ImagingSeries{
			BodySite:  def.BodySite,
			Modality:  def.Modality,
			Instances: def.Instances,
		}
	}
	env.entity.Record.AddImagingStudy(env.time, s.ProcedureCode, series)
	return true, nil
}

// DeviceState associates an implanted device with the entity.
type DeviceState struct {
	stateCore
	Codes  []entity.Code `mapstructure:"codes"`
	Assign string        `mapstructure:"assign_to_attribute"`
}

// Process implements State.
func (s *DeviceState) Process(env stepEnv) (bool, error) {
	device := env.entity.Record.StartDevice(env.time, firstCode(s.Codes), uuid.NewString())
	env.ctx.Entries[s.name] = device
	if s.Assign != "" {
		env.entity.SetAttribute(s.Assign, device)
	}
	return true, nil
}

// DeviceEndState removes a device, referenced by device state name, by
// attribute, or by code.
type DeviceEndState struct {
	stateCore
	Device    string        `mapstructure:"device"`
	Attribute string        `mapstructure:"referenced_by_attribute"`
	Codes     []entity.Code `mapstructure:"codes"`
}

// Process implements State.
func (s *DeviceEndState) Process(env stepEnv) (bool, error) {
	switch {
	case s.Device != "":
		if d, ok := env.ctx.Entries[s.Device].(*entity.Device); ok && d.End == 0 {
			d.End = env.time
		}
	case s.Attribute != "":
		if v, ok := env.entity.Attribute(s.Attribute); ok {
			if d, ok := v.(*entity.Device); ok && d.End == 0 {
				d.End = env.time
			}
		}
	default:
		env.entity.Record.EndDevice(env.time, firstCode(s.Codes))
	}
	return true, nil
}

// SupplyState appends a dispensed supply.
type SupplyState struct {
	stateCore
	Codes    []entity.Code `mapstructure:"codes"`
	Quantity int           `mapstructure:"quantity"`
}

// Process implements State.
func (s *SupplyState) Process(env stepEnv) (bool, error) {
	quantity := s.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	env.entity.Record.AddSupply(env.time, firstCode(s.Codes), quantity)
	return true, nil
}

// ImmunizationState appends an administered immunization.
type ImmunizationState struct {
	stateCore
	Codes  []entity.Code `mapstructure:"codes"`
	Series int           `mapstructure:"series"`
}

// Process implements State.
func (s *ImmunizationState) Process(env stepEnv) (bool, error) {
	env.entity.Record.AddImmunization(env.time, firstCode(s.Codes), s.Series)
	return true, nil
}
