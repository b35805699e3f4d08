package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifegraph/lifegraph/internal/entity"
)

const (
	t0          = int64(1_600_000_000_000)
	millisYear  = int64(365.25 * 24 * 60 * 60 * 1000)
	millisMonth = int64(30.4375 * 24 * 60 * 60 * 1000)
)

func testEntity(seed int64, ageYears int) *entity.Entity {
	birth := t0 - int64(ageYears)*millisYear
	return entity.New("test-entity", seed, birth, entity.GenderFemale, "white", "nonhispanic")
}

func env(e *entity.Entity) evalEnv {
	return evalEnv{module: "test", entity: e, time: t0}
}

func mustEval(t *testing.T, c *ConditionDef, e *entity.Entity) bool {
	t.Helper()
	ok, err := evaluate(c, env(e))
	require.NoError(t, err)
	return ok
}

func TestEvaluateConstants(t *testing.T) {
	e := testEntity(1, 30)
	assert.True(t, mustEval(t, &ConditionDef{Type: "True"}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "False"}, e))
	assert.True(t, mustEval(t, nil, e), "absent condition is vacuously true")
}

func TestEvaluateAge(t *testing.T) {
	adult := testEntity(1, 30)
	minor := testEntity(1, 10)

	cond := &ConditionDef{Type: "Age", Operator: ">=", Quantity: 18, Unit: "years"}
	assert.True(t, mustEval(t, cond, adult))
	assert.False(t, mustEval(t, cond, minor))

	// Unit conversion: 216 months == 18 years.
	inMonths := &ConditionDef{Type: "Age", Operator: ">=", Quantity: 216, Unit: "months"}
	assert.True(t, mustEval(t, inMonths, adult))
	assert.False(t, mustEval(t, inMonths, minor))
}

func TestEvaluateAgeUnknownUnit(t *testing.T) {
	e := testEntity(1, 30)
	_, err := evaluate(&ConditionDef{Type: "Age", Operator: ">", Quantity: 1, Unit: "fortnights"}, env(e))
	require.Error(t, err)
	assert.True(t, IsEvaluationError(err))
}

func TestEvaluateGender(t *testing.T) {
	e := testEntity(1, 30)
	assert.True(t, mustEval(t, &ConditionDef{Type: "Gender", Gender: entity.GenderFemale}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "Gender", Gender: entity.GenderMale}, e))
}

func TestEvaluateAttributeEquality(t *testing.T) {
	e := testEntity(1, 30)
	e.SetAttribute("diabetic", true)

	assert.True(t, mustEval(t, &ConditionDef{Type: "Attribute", Attribute: "diabetic", Value: true}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "Attribute", Attribute: "diabetic", Value: "true"}, e),
		"equality is strict including type")
	assert.False(t, mustEval(t, &ConditionDef{Type: "Attribute", Attribute: "missing", Value: true}, e))
}

func TestEvaluateAttributeNumeric(t *testing.T) {
	e := testEntity(1, 30)
	e.SetAttribute("count", 5.0)

	assert.True(t, mustEval(t, &ConditionDef{Type: "Attribute", Attribute: "count", Operator: ">", Value: 3}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "Attribute", Attribute: "count", Operator: "<", Value: 3}, e))
}

func TestEvaluateAttributeNilOperators(t *testing.T) {
	e := testEntity(1, 30)
	e.SetAttribute("set", 1)

	assert.True(t, mustEval(t, &ConditionDef{Type: "Attribute", Attribute: "unset", Operator: "is nil"}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "Attribute", Attribute: "set", Operator: "is nil"}, e))
	assert.True(t, mustEval(t, &ConditionDef{Type: "Attribute", Attribute: "set", Operator: "is not nil"}, e))
}

func TestEvaluateSymptom(t *testing.T) {
	e := testEntity(1, 30)
	e.SetSymptom("flu", "fever", 40)
	e.SetSymptom("covid", "fever", 80)

	// Severity is the max across causes.
	assert.True(t, mustEval(t, &ConditionDef{Type: "Symptom", Symptom: "fever", Operator: ">=", Quantity: 80}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "Symptom", Symptom: "fever", Operator: ">", Quantity: 80}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "Symptom", Symptom: "cough", Operator: ">", Quantity: 0}, e))
}

func TestEvaluateObservation(t *testing.T) {
	e := testEntity(1, 30)
	code := entity.Code{System: "LOINC", Code: "4548-4"}

	cond := &ConditionDef{Type: "Observation", Codes: []entity.Code{code}, Operator: ">", Quantity: 6.5}
	assert.False(t, mustEval(t, cond, e), "no observation on record yet")

	e.Record.AddObservation(t0-2*millisMonth, code, "laboratory", "%", 6.0)
	assert.False(t, mustEval(t, cond, e))

	// Most recently started observation wins.
	e.Record.AddObservation(t0-millisMonth, code, "laboratory", "%", 7.2)
	assert.True(t, mustEval(t, cond, e))
}

func TestEvaluateActiveCondition(t *testing.T) {
	e := testEntity(1, 30)
	code := entity.Code{System: "SNOMED-CT", Code: "44054006"}
	cond := &ConditionDef{Type: "Active Condition", Codes: []entity.Code{code}}

	assert.False(t, mustEval(t, cond, e))

	e.Record.StartCondition(t0-millisYear, code)
	assert.True(t, mustEval(t, cond, e))

	e.Record.EndCondition(t0-millisMonth, code)
	assert.False(t, mustEval(t, cond, e), "resolved before the evaluation instant")
}

func TestEvaluateActiveMedication(t *testing.T) {
	e := testEntity(1, 30)
	code := entity.Code{System: "RxNorm", Code: "860975"}
	cond := &ConditionDef{Type: "Active Medication", Codes: []entity.Code{code}}

	assert.False(t, mustEval(t, cond, e))
	e.Record.StartMedication(t0-millisMonth, code, nil, false)
	assert.True(t, mustEval(t, cond, e))
	e.Record.EndMedication(t0-1, code, nil)
	assert.False(t, mustEval(t, cond, e))
}

func TestEvaluateBooleanComposition(t *testing.T) {
	e := testEntity(1, 30)

	adult := &ConditionDef{Type: "Age", Operator: ">=", Quantity: 18, Unit: "years"}
	female := &ConditionDef{Type: "Gender", Gender: entity.GenderFemale}
	male := &ConditionDef{Type: "Gender", Gender: entity.GenderMale}

	assert.True(t, mustEval(t, &ConditionDef{Type: "And", Conditions: []*ConditionDef{adult, female}}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "And", Conditions: []*ConditionDef{adult, male}}, e))
	assert.True(t, mustEval(t, &ConditionDef{Type: "Or", Conditions: []*ConditionDef{male, female}}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "Not", Condition: female}, e))
	assert.True(t, mustEval(t, &ConditionDef{Type: "Not", Condition: male}, e))
}

func TestEvaluatePriorState(t *testing.T) {
	e := testEntity(1, 30)
	ev := env(e)
	ev.history = []string{"Initial", "Checkup"}

	ok, err := evaluate(&ConditionDef{Type: "PriorState", Name: "Checkup"}, ev)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = evaluate(&ConditionDef{Type: "PriorState", Name: "Surgery"}, ev)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateDate(t *testing.T) {
	e := testEntity(1, 30)
	// t0 falls in 2020.
	assert.True(t, mustEval(t, &ConditionDef{Type: "Date", Operator: ">=", Year: 2015}, e))
	assert.False(t, mustEval(t, &ConditionDef{Type: "Date", Operator: "<", Year: 2000}, e))
}

func TestEvaluateUnknownKindFails(t *testing.T) {
	e := testEntity(1, 30)
	_, err := evaluate(&ConditionDef{Type: "Horoscope"}, env(e))
	require.Error(t, err)
	assert.True(t, IsEvaluationError(err))
	assert.Contains(t, err.Error(), "Horoscope")
}

func TestEvaluateUnknownOperatorFails(t *testing.T) {
	e := testEntity(1, 30)
	_, err := evaluate(&ConditionDef{Type: "Age", Operator: "~=", Quantity: 18, Unit: "years"}, env(e))
	require.Error(t, err)
	assert.True(t, IsEvaluationError(err))
	assert.Contains(t, err.Error(), "~=")
}
