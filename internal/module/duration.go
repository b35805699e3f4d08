package module

import "fmt"

// Fixed unit ratios shared by age comparison and delay computation.
// One month is 30.4375 days; one year is 365.25 days.
const (
	millisPerSecond = 1000
	millisPerMinute = 60 * millisPerSecond
	millisPerHour   = 60 * millisPerMinute
	millisPerDay    = 24 * millisPerHour
	millisPerWeek   = 7 * millisPerDay
	millisPerMonth  = 30.4375 * millisPerDay
	millisPerYear   = 365.25 * millisPerDay
)

// DaysPerYear exposes the year ratio for age arithmetic.
const DaysPerYear = 365.25

// unitMillis maps a time-unit token to its millisecond ratio.
var unitMillis = map[string]float64{
	"seconds": millisPerSecond,
	"minutes": millisPerMinute,
	"hours":   millisPerHour,
	"days":    millisPerDay,
	"weeks":   millisPerWeek,
	"months":  millisPerMonth,
	"years":   millisPerYear,
}

// ToMillis converts a quantity of the named unit to milliseconds.
// Unknown units are an error; the caller decides how fatally to treat it.
func ToMillis(quantity float64, unit string) (int64, error) {
	ratio, ok := unitMillis[unit]
	if !ok {
		return 0, fmt.Errorf("unknown time unit %q", unit)
	}
	return int64(quantity * ratio), nil
}

// ToYears converts a quantity of the named unit to fractional years.
// Only units meaningful for age comparison are accepted.
func ToYears(quantity float64, unit string) (float64, error) {
	ratio, ok := unitMillis[unit]
	if !ok {
		return 0, fmt.Errorf("unknown time unit %q", unit)
	}
	return quantity * ratio / millisPerYear, nil
}
