package entity

import "github.com/google/uuid"

// Code is a coded concept: a coding system, a code within it, and an
// optional human-readable display.
type Code struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// Matches reports whether c and other identify the same concept.
// Display text is ignored.
func (c Code) Matches(other Code) bool {
	return c.System == other.System && c.Code == other.Code
}

// MatchesAny reports whether any of codes identifies the same concept as c.
func (c Code) MatchesAny(codes []Code) bool {
	for _, other := range codes {
		if c.Matches(other) {
			return true
		}
	}
	return false
}

// Meta carries the fields common to every record entry.
type Meta struct {
	ID    string `json:"id"`
	Code  Code   `json:"code"`
	Text  string `json:"text,omitempty"`
	Start int64  `json:"start_ms"`
	End   int64  `json:"end_ms,omitempty"` // 0 while open
	Seq   int64  `json:"seq"`              // append order within the record
}

// Active reports whether the entry is in effect at the given instant:
// started at or before it, and not yet ended (or ended after it).
func (m *Meta) Active(at int64) bool {
	return m.Start <= at && (m.End == 0 || m.End > at)
}

// Encounter is a visit during which other entries are recorded.
type Encounter struct {
	Meta
	Class     string `json:"class"`
	Reason    *Code  `json:"reason,omitempty"`
	Discharge *Code  `json:"discharge,omitempty"`
}

// Condition is a diagnosed condition, open until resolved.
type Condition struct {
	Meta
	EncounterID string `json:"encounter_id,omitempty"`
}

// Allergy is an allergy or intolerance, open until it abates.
type Allergy struct {
	Meta
	EncounterID string `json:"encounter_id,omitempty"`
}

// Medication is an active or completed medication order.
type Medication struct {
	Meta
	EncounterID string `json:"encounter_id,omitempty"`
	Reasons     []Code `json:"reasons,omitempty"`
	AsNeeded    bool   `json:"as_needed,omitempty"`
	Stopped     *Code  `json:"stopped,omitempty"` // why the order ended
}

// Observation is a single measured or asserted value.
type Observation struct {
	Meta
	EncounterID string `json:"encounter_id,omitempty"`
	Category    string `json:"category,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Value       any    `json:"value,omitempty"`
}

// NumericValue returns the observation's value as a float64.
// The second return is false for absent or non-numeric values.
func (o *Observation) NumericValue() (float64, bool) {
	switch v := o.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Procedure is a performed procedure, possibly with a duration.
type Procedure struct {
	Meta
	EncounterID string `json:"encounter_id,omitempty"`
	Reasons     []Code `json:"reasons,omitempty"`
}

// Immunization is an administered immunization.
type Immunization struct {
	Meta
	EncounterID string `json:"encounter_id,omitempty"`
	Series      int    `json:"series,omitempty"`
}

// CarePlan is a plan of care with coded activities, open until it ends.
type CarePlan struct {
	Meta
	EncounterID string `json:"encounter_id,omitempty"`
	Activities  []Code `json:"activities,omitempty"`
	Reasons     []Code `json:"reasons,omitempty"`
	Stopped     *Code  `json:"stopped,omitempty"`
}

// Device is an implanted or associated device, open until removed.
type Device struct {
	Meta
	EncounterID string `json:"encounter_id,omitempty"`
	UDI         string `json:"udi,omitempty"`
}

// ImagingSeries is one series within an imaging study.
type ImagingSeries struct {
	BodySite  Code `json:"body_site"`
	Modality  Code `json:"modality"`
	Instances int  `json:"instances"`
}

// ImagingStudy is a performed imaging study.
type ImagingStudy struct {
	Meta
	EncounterID string          `json:"encounter_id,omitempty"`
	Series      []ImagingSeries `json:"series,omitempty"`
}

// Supply is a dispensed supply with a quantity.
type Supply struct {
	Meta
	EncounterID string `json:"encounter_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

// Report is a diagnostic report grouping observation results.
type Report struct {
	Meta
	EncounterID string         `json:"encounter_id,omitempty"`
	Results     []*Observation `json:"results,omitempty"`
}

// Record is the entity's append-only chronicle. Entries are never removed;
// after append the only mutations are closing an open entry (setting End)
// or attaching a resolution code.
type Record struct {
	Encounters     []*Encounter    `json:"encounters,omitempty"`
	Conditions     []*Condition    `json:"conditions,omitempty"`
	Allergies      []*Allergy      `json:"allergies,omitempty"`
	Medications    []*Medication   `json:"medications,omitempty"`
	Observations   []*Observation  `json:"observations,omitempty"`
	Procedures     []*Procedure    `json:"procedures,omitempty"`
	Immunizations  []*Immunization `json:"immunizations,omitempty"`
	CarePlans      []*CarePlan     `json:"care_plans,omitempty"`
	Devices        []*Device       `json:"devices,omitempty"`
	ImagingStudies []*ImagingStudy `json:"imaging_studies,omitempty"`
	Supplies       []*Supply       `json:"supplies,omitempty"`
	Reports        []*Report       `json:"reports,omitempty"`

	// CurrentEncounter is the most recent open encounter, used to attach
	// entries recorded during a visit. Nil outside any encounter.
	CurrentEncounter *Encounter `json:"-"`

	seq int64
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{}
}

func (r *Record) newMeta(start int64, code Code) Meta {
	r.seq++
	return Meta{
		ID:    uuid.NewString(),
		Code:  code,
		Start: start,
		Seq:   r.seq,
	}
}

func (r *Record) currentEncounterID() string {
	if r.CurrentEncounter == nil {
		return ""
	}
	return r.CurrentEncounter.ID
}

// StartEncounter appends a new encounter and marks it current.
func (r *Record) StartEncounter(start int64, class string, code Code) *Encounter {
	e := &Encounter{Meta: r.newMeta(start, code), Class: class}
	r.Encounters = append(r.Encounters, e)
	r.CurrentEncounter = e
	return e
}

// EndEncounter closes the current encounter, if any, and clears the pointer.
func (r *Record) EndEncounter(end int64, discharge *Code) {
	if r.CurrentEncounter == nil {
		return
	}
	r.CurrentEncounter.End = end
	r.CurrentEncounter.Discharge = discharge
	r.CurrentEncounter = nil
}

// StartCondition appends an open condition entry.
func (r *Record) StartCondition(start int64, code Code) *Condition {
	c := &Condition{Meta: r.newMeta(start, code), EncounterID: r.currentEncounterID()}
	r.Conditions = append(r.Conditions, c)
	return c
}

// EndCondition closes the most recent open condition matching code.
func (r *Record) EndCondition(end int64, code Code) {
	for i := len(r.Conditions) - 1; i >= 0; i-- {
		c := r.Conditions[i]
		if c.End == 0 && c.Code.Matches(code) {
			c.End = end
			return
		}
	}
}

// ActiveCondition returns the most recent condition matching any of codes
// that is active at the given instant, or nil.
func (r *Record) ActiveCondition(at int64, codes []Code) *Condition {
	for i := len(r.Conditions) - 1; i >= 0; i-- {
		c := r.Conditions[i]
		if c.Code.MatchesAny(codes) && c.Active(at) {
			return c
		}
	}
	return nil
}

// StartAllergy appends an open allergy entry.
func (r *Record) StartAllergy(start int64, code Code) *Allergy {
	a := &Allergy{Meta: r.newMeta(start, code), EncounterID: r.currentEncounterID()}
	r.Allergies = append(r.Allergies, a)
	return a
}

// EndAllergy closes the most recent open allergy matching code.
func (r *Record) EndAllergy(end int64, code Code) {
	for i := len(r.Allergies) - 1; i >= 0; i-- {
		a := r.Allergies[i]
		if a.End == 0 && a.Code.Matches(code) {
			a.End = end
			return
		}
	}
}

// ActiveAllergy returns the most recent allergy matching any of codes that
// is active at the given instant, or nil.
func (r *Record) ActiveAllergy(at int64, codes []Code) *Allergy {
	for i := len(r.Allergies) - 1; i >= 0; i-- {
		a := r.Allergies[i]
		if a.Code.MatchesAny(codes) && a.Active(at) {
			return a
		}
	}
	return nil
}

// StartMedication appends an open medication order.
func (r *Record) StartMedication(start int64, code Code, reasons []Code, asNeeded bool) *Medication {
	m := &Medication{
		Meta:        r.newMeta(start, code),
		EncounterID: r.currentEncounterID(),
		Reasons:     reasons,
		AsNeeded:    asNeeded,
	}
	r.Medications = append(r.Medications, m)
	return m
}

// EndMedication closes the most recent open medication matching code.
func (r *Record) EndMedication(end int64, code Code, stopped *Code) {
	for i := len(r.Medications) - 1; i >= 0; i-- {
		m := r.Medications[i]
		if m.End == 0 && m.Code.Matches(code) {
			m.End = end
			m.Stopped = stopped
			return
		}
	}
}

// ActiveMedication returns the most recent medication matching any of codes
// that is active at the given instant, or nil.
func (r *Record) ActiveMedication(at int64, codes []Code) *Medication {
	for i := len(r.Medications) - 1; i >= 0; i-- {
		m := r.Medications[i]
		if m.Code.MatchesAny(codes) && m.Active(at) {
			return m
		}
	}
	return nil
}

// AddObservation appends an observation entry.
func (r *Record) AddObservation(at int64, code Code, category, unit string, value any) *Observation {
	o := &Observation{
		Meta:        r.newMeta(at, code),
		EncounterID: r.currentEncounterID(),
		Category:    category,
		Unit:        unit,
		Value:       value,
	}
	r.Observations = append(r.Observations, o)
	return o
}

// LatestObservation returns the most recently started observation matching
// any of codes, or nil.
func (r *Record) LatestObservation(codes []Code) *Observation {
	var latest *Observation
	for _, o := range r.Observations {
		if !o.Code.MatchesAny(codes) {
			continue
		}
		if latest == nil || o.Start > latest.Start || (o.Start == latest.Start && o.Seq > latest.Seq) {
			latest = o
		}
	}
	return latest
}

// AddProcedure appends a procedure entry. A zero duration leaves End open
// at the same instant as Start.
func (r *Record) AddProcedure(at int64, code Code, reasons []Code, duration int64) *Procedure {
	p := &Procedure{Meta: r.newMeta(at, code), EncounterID: r.currentEncounterID(), Reasons: reasons}
	if duration > 0 {
		p.End = at + duration
	}
	r.Procedures = append(r.Procedures, p)
	return p
}

// AddImmunization appends an immunization entry.
func (r *Record) AddImmunization(at int64, code Code, series int) *Immunization {
	im := &Immunization{Meta: r.newMeta(at, code), EncounterID: r.currentEncounterID(), Series: series}
	r.Immunizations = append(r.Immunizations, im)
	return im
}

// StartCarePlan appends an open care plan.
func (r *Record) StartCarePlan(start int64, code Code, activities, reasons []Code) *CarePlan {
	cp := &CarePlan{
		Meta:        r.newMeta(start, code),
		EncounterID: r.currentEncounterID(),
		Activities:  activities,
		Reasons:     reasons,
	}
	r.CarePlans = append(r.CarePlans, cp)
	return cp
}

// EndCarePlan closes the most recent open care plan matching code.
func (r *Record) EndCarePlan(end int64, code Code, stopped *Code) {
	for i := len(r.CarePlans) - 1; i >= 0; i-- {
		cp := r.CarePlans[i]
		if cp.End == 0 && cp.Code.Matches(code) {
			cp.End = end
			cp.Stopped = stopped
			return
		}
	}
}

// ActiveCarePlan returns the most recent care plan matching any of codes
// that is active at the given instant, or nil.
func (r *Record) ActiveCarePlan(at int64, codes []Code) *CarePlan {
	for i := len(r.CarePlans) - 1; i >= 0; i-- {
		cp := r.CarePlans[i]
		if cp.Code.MatchesAny(codes) && cp.Active(at) {
			return cp
		}
	}
	return nil
}

// StartDevice appends an open device association.
func (r *Record) StartDevice(start int64, code Code, udi string) *Device {
	d := &Device{Meta: r.newMeta(start, code), EncounterID: r.currentEncounterID(), UDI: udi}
	r.Devices = append(r.Devices, d)
	return d
}

// EndDevice closes the most recent open device matching code.
func (r *Record) EndDevice(end int64, code Code) {
	for i := len(r.Devices) - 1; i >= 0; i-- {
		d := r.Devices[i]
		if d.End == 0 && d.Code.Matches(code) {
			d.End = end
			return
		}
	}
}

// AddImagingStudy appends an imaging study entry.
func (r *Record) AddImagingStudy(at int64, code Code, series []ImagingSeries) *ImagingStudy {
	st := &ImagingStudy{Meta: r.newMeta(at, code), EncounterID: r.currentEncounterID(), Series: series}
	r.ImagingStudies = append(r.ImagingStudies, st)
	return st
}

// AddSupply appends a supply entry.
func (r *Record) AddSupply(at int64, code Code, quantity int) *Supply {
	s := &Supply{Meta: r.newMeta(at, code), EncounterID: r.currentEncounterID(), Quantity: quantity}
	r.Supplies = append(r.Supplies, s)
	return s
}

// AddReport appends a diagnostic report over the given observations.
func (r *Record) AddReport(at int64, code Code, results []*Observation) *Report {
	rep := &Report{Meta: r.newMeta(at, code), EncounterID: r.currentEncounterID(), Results: results}
	r.Reports = append(r.Reports, rep)
	return rep
}
