package entity

import (
	"github.com/lifegraph/lifegraph/internal/rng"
)

// Fractional-year conversion shared with age computation.
// One year is 365.25 days.
const millisPerYear = 365.25 * 24 * 60 * 60 * 1000

// Gender values used by demographics and the Gender condition.
const (
	GenderFemale = "F"
	GenderMale   = "M"
)

// Entity is one simulated individual. All simulation state for the
// individual lives here: demographics, the attribute store (domain
// attributes and engine bookkeeping alike), symptoms, and the record.
type Entity struct {
	ID        string `json:"id"`
	Seed      int64  `json:"seed"`
	Birth     int64  `json:"birth_ms"`
	Death     int64  `json:"death_ms,omitempty"` // 0 while alive
	Gender    string `json:"gender"`
	Race      string `json:"race"`
	Ethnicity string `json:"ethnicity"`

	// Attributes is the open-ended key->value store. Module states write
	// domain attributes here; the engine stores per-module run contexts
	// under module-qualified keys.
	Attributes map[string]any `json:"attributes,omitempty"`

	// symptoms maps symptom name -> cause -> severity (0-100).
	symptoms map[string]map[string]int

	// vitals maps vital-sign name -> current value.
	vitals map[string]float64

	Record *Record `json:"record"`

	rand *rng.Stream
}

// New creates an entity with the given identity, seed, and demographics.
func New(id string, seed int64, birth int64, gender, race, ethnicity string) *Entity {
	return &Entity{
		ID:         id,
		Seed:       seed,
		Birth:      birth,
		Gender:     gender,
		Race:       race,
		Ethnicity:  ethnicity,
		Attributes: make(map[string]any),
		Record:     NewRecord(),
	}
}

// Rand returns the entity's random stream, created lazily from its seed.
// Every stochastic decision for this entity draws from this one stream, so
// the full life history is reproducible from (seed, module set) alone.
func (e *Entity) Rand() *rng.Stream {
	if e.rand == nil {
		e.rand = rng.New(e.Seed)
	}
	return e.rand
}

// AgeAt returns the entity's age in fractional years at the given instant.
func (e *Entity) AgeAt(at int64) float64 {
	return float64(at-e.Birth) / millisPerYear
}

// Alive reports whether the entity is alive at the given instant.
func (e *Entity) Alive(at int64) bool {
	return e.Death == 0 || e.Death > at
}

// Attribute returns the named attribute and whether it is set.
func (e *Entity) Attribute(key string) (any, bool) {
	v, ok := e.Attributes[key]
	return v, ok
}

// SetAttribute stores a value in the attribute store.
func (e *Entity) SetAttribute(key string, value any) {
	e.Attributes[key] = value
}

// SetSymptom records the severity (0-100) of a symptom from a given cause.
func (e *Entity) SetSymptom(cause, symptom string, severity int) {
	if e.symptoms == nil {
		e.symptoms = make(map[string]map[string]int)
	}
	bySymptom := e.symptoms[symptom]
	if bySymptom == nil {
		bySymptom = make(map[string]int)
		e.symptoms[symptom] = bySymptom
	}
	bySymptom[cause] = severity
}

// SymptomSeverity returns the maximum severity of the named symptom across
// all causes, or 0 if the symptom was never set.
func (e *Entity) SymptomSeverity(symptom string) int {
	max := 0
	for _, severity := range e.symptoms[symptom] {
		if severity > max {
			max = severity
		}
	}
	return max
}

// SetVital records the current value of a named vital sign.
func (e *Entity) SetVital(name string, value float64) {
	if e.vitals == nil {
		e.vitals = make(map[string]float64)
	}
	e.vitals[name] = value
}

// Vital returns the current value of a named vital sign.
func (e *Entity) Vital(name string) (float64, bool) {
	v, ok := e.vitals[name]
	return v, ok
}

// RecordDeath marks the entity dead at the given instant. The earliest
// recorded death wins; later causes do not move it.
func (e *Entity) RecordDeath(at int64) {
	if e.Death == 0 || at < e.Death {
		e.Death = at
	}
}
