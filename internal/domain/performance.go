package domain

import "encoding/json"

// Performance is the two-variant result of a performance computation:
// either a valid 100-based value or an explicit missing-data state.
// Missing data must propagate as this state, never as a sentinel number
// that could silently participate in min/max/mean.
type Performance struct {
	value float64
	valid bool
}

// NewPerformance returns a valid performance value.
func NewPerformance(v float64) Performance {
	return Performance{value: v, valid: true}
}

// MissingPerformance returns the missing-data variant.
func MissingPerformance() Performance {
	return Performance{}
}

// Valid reports whether the performance carries a value.
func (p Performance) Valid() bool {
	return p.valid
}

// Value returns the performance value and whether it is valid.
func (p Performance) Value() (float64, bool) {
	return p.value, p.valid
}

// PerformanceRatio computes price/strike x 100. A non-positive strike or
// price yields the missing-data variant.
func PerformanceRatio(price, strike float64) Performance {
	if strike <= 0 || price <= 0 {
		return MissingPerformance()
	}
	return NewPerformance(price / strike * 100)
}

// MarshalJSON renders a valid performance as a number and missing data as
// null, so report consumers cannot mistake the absence for a level.
func (p Performance) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

// UnmarshalJSON accepts a number or null.
func (p *Performance) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = MissingPerformance()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = NewPerformance(v)
	return nil
}
