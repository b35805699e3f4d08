package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifegraph/lifegraph/internal/rng"
)

const (
	t0         = int64(1_600_000_000_000)
	millisYear = int64(365.25 * 24 * 60 * 60 * 1000)
)

func newTestEntity(ageYears int) *Entity {
	return New("e-1", 42, t0-int64(ageYears)*millisYear, GenderFemale, "white", "nonhispanic")
}

func TestAgeAt(t *testing.T) {
	e := newTestEntity(30)
	assert.InDelta(t, 30.0, e.AgeAt(t0), 0.001)
	assert.InDelta(t, 30.5, e.AgeAt(t0+millisYear/2), 0.001)
}

func TestAlive(t *testing.T) {
	e := newTestEntity(30)
	assert.True(t, e.Alive(t0))

	e.RecordDeath(t0 + 1000)
	assert.True(t, e.Alive(t0))
	assert.False(t, e.Alive(t0+1000))

	// The earliest death wins.
	e.RecordDeath(t0 + 5000)
	assert.Equal(t, t0+1000, e.Death)
	e.RecordDeath(t0 + 500)
	assert.Equal(t, t0+500, e.Death)
}

func TestRandIsSeededAndStable(t *testing.T) {
	a := newTestEntity(30)
	b := newTestEntity(30)
	require.Equal(t, a.Rand().Next(), b.Rand().Next(), "same seed, same stream")

	// Rand returns the same stream on every call, not a fresh one.
	v1 := a.Rand().Next()
	v2 := a.Rand().Next()
	assert.NotEqual(t, v1, v2)
}

func TestSymptomSeverityMaxAcrossCauses(t *testing.T) {
	e := newTestEntity(30)
	assert.Equal(t, 0, e.SymptomSeverity("fever"))

	e.SetSymptom("flu", "fever", 40)
	e.SetSymptom("infection", "fever", 70)
	assert.Equal(t, 70, e.SymptomSeverity("fever"))

	e.SetSymptom("infection", "fever", 20)
	assert.Equal(t, 40, e.SymptomSeverity("fever"))
}

func TestVitals(t *testing.T) {
	e := newTestEntity(30)
	_, ok := e.Vital("bmi")
	assert.False(t, ok)

	e.SetVital("bmi", 24.5)
	v, ok := e.Vital("bmi")
	require.True(t, ok)
	assert.Equal(t, 24.5, v)
}

func TestEncounterLifecycle(t *testing.T) {
	r := NewRecord()
	enc := r.StartEncounter(t0, "ambulatory", Code{System: "SNOMED-CT", Code: "185349003"})
	require.Same(t, enc, r.CurrentEncounter)

	cond := r.StartCondition(t0, Code{System: "SNOMED-CT", Code: "44054006"})
	assert.Equal(t, enc.ID, cond.EncounterID, "entries recorded during a visit reference it")

	r.EndEncounter(t0+1000, nil)
	assert.Nil(t, r.CurrentEncounter)
	assert.Equal(t, t0+1000, enc.End)

	// Entries outside any encounter carry no reference.
	loose := r.StartCondition(t0+2000, Code{System: "SNOMED-CT", Code: "195662009"})
	assert.Empty(t, loose.EncounterID)
}

func TestConditionEndMatchesMostRecentOpen(t *testing.T) {
	r := NewRecord()
	code := Code{System: "SNOMED-CT", Code: "44054006"}

	first := r.StartCondition(t0, code)
	second := r.StartCondition(t0+1000, code)

	r.EndCondition(t0+2000, code)
	assert.Equal(t, t0+2000, second.End)
	assert.Zero(t, first.End)
}

func TestActiveConditionWindow(t *testing.T) {
	r := NewRecord()
	code := Code{System: "SNOMED-CT", Code: "44054006"}
	codes := []Code{code}

	c := r.StartCondition(t0, code)
	assert.Nil(t, r.ActiveCondition(t0-1, codes), "not yet started")
	assert.NotNil(t, r.ActiveCondition(t0, codes))

	c.End = t0 + 1000
	assert.NotNil(t, r.ActiveCondition(t0+999, codes))
	assert.Nil(t, r.ActiveCondition(t0+1000, codes), "end instant is exclusive")
}

func TestLatestObservationPrefersMostRecentStart(t *testing.T) {
	r := NewRecord()
	code := Code{System: "LOINC", Code: "4548-4"}

	r.AddObservation(t0, code, "laboratory", "%", 6.0)
	newer := r.AddObservation(t0+1000, code, "laboratory", "%", 7.0)
	r.AddObservation(t0+500, code, "laboratory", "%", 6.5)

	got := r.LatestObservation([]Code{code})
	require.NotNil(t, got)
	assert.Same(t, newer, got)

	assert.Nil(t, r.LatestObservation([]Code{{System: "LOINC", Code: "nope"}}))
}

func TestCodeMatching(t *testing.T) {
	a := Code{System: "SNOMED-CT", Code: "44054006", Display: "Diabetes"}
	b := Code{System: "SNOMED-CT", Code: "44054006", Display: "Different display"}
	c := Code{System: "RxNorm", Code: "44054006"}

	assert.True(t, a.Matches(b), "display text is ignored")
	assert.False(t, a.Matches(c), "system participates in identity")
	assert.True(t, a.MatchesAny([]Code{c, b}))
	assert.False(t, a.MatchesAny(nil))
}

func TestMedicationLifecycle(t *testing.T) {
	r := NewRecord()
	code := Code{System: "RxNorm", Code: "860975"}
	stopReason := &Code{System: "SNOMED-CT", Code: "182840001"}

	med := r.StartMedication(t0, code, []Code{{System: "SNOMED-CT", Code: "44054006"}}, false)
	require.NotNil(t, r.ActiveMedication(t0, []Code{code}))

	r.EndMedication(t0+1000, code, stopReason)
	assert.Equal(t, t0+1000, med.End)
	assert.Equal(t, stopReason, med.Stopped)
	assert.Nil(t, r.ActiveMedication(t0+1000, []Code{code}))
}

func TestFactoryDeterminism(t *testing.T) {
	mk := func() *Factory {
		return NewFactory(rng.New(99), t0, 0, 90)
	}

	a := mk()
	b := mk()
	for i := 0; i < 10; i++ {
		ea := a.New()
		eb := b.New()
		assert.Equal(t, ea.Seed, eb.Seed, "entity %d seed", i)
		assert.Equal(t, ea.Birth, eb.Birth, "entity %d birth", i)
		assert.Equal(t, ea.Gender, eb.Gender, "entity %d gender", i)
		assert.Equal(t, ea.Race, eb.Race, "entity %d race", i)
	}
}

func TestFactoryAgeBounds(t *testing.T) {
	f := NewFactory(rng.New(7), t0, 18, 65)
	for i := 0; i < 100; i++ {
		e := f.New()
		age := e.AgeAt(t0)
		assert.GreaterOrEqual(t, age, 17.99)
		assert.LessOrEqual(t, age, 65.01)
	}
}
