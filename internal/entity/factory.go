package entity

import (
	"github.com/google/uuid"

	"github.com/lifegraph/lifegraph/internal/rng"
)

// Factory produces entities with seeded, reproducible demographics.
// Each produced entity gets its own child stream seed, so entity N of a
// factory seeded with K is always the same individual.
type Factory struct {
	stream *rng.Stream

	// ReferenceTime is the instant entities are generated relative to.
	ReferenceTime int64

	// MinAgeYears and MaxAgeYears bound the sampled age at ReferenceTime.
	MinAgeYears int
	MaxAgeYears int
}

// raceEthnicity pairs a race category with its ethnicity label.
type raceEthnicity struct {
	race      string
	ethnicity string
}

var raceCategories = []raceEthnicity{
	{"white", "nonhispanic"},
	{"black", "nonhispanic"},
	{"asian", "nonhispanic"},
	{"native", "nonhispanic"},
	{"other", "hispanic"},
}

// NewFactory creates a factory drawing from the given stream.
func NewFactory(stream *rng.Stream, referenceTime int64, minAge, maxAge int) *Factory {
	return &Factory{
		stream:        stream,
		ReferenceTime: referenceTime,
		MinAgeYears:   minAge,
		MaxAgeYears:   maxAge,
	}
}

// New samples one entity. Demographics are drawn from the factory stream;
// the entity's own stream is seeded from a child derivation so that record
// generation cannot perturb the demographics of later entities.
func (f *Factory) New() *Entity {
	seed := f.stream.Child().Seed()

	gender := GenderFemale
	if f.stream.NextBool(0.5) {
		gender = GenderMale
	}

	re := rng.Choice(f.stream, raceCategories)

	ageYears := f.stream.NextRange(float64(f.MinAgeYears), float64(f.MaxAgeYears))
	birth := f.ReferenceTime - int64(ageYears*millisPerYear)

	return New(uuid.NewString(), seed, birth, gender, re.race, re.ethnicity)
}
