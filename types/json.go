package types

import "encoding/json"

// UnmarshalJSON accepts either a bare number (exact match) or an object.
func (c *NumberCheck) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.Exact = &n
		c.Min, c.Max = nil, nil
		return nil
	}
	type alias NumberCheck
	aux := (*alias)(c)
	return json.Unmarshal(data, aux)
}

// UnmarshalJSON accepts either a bare level name (exact minimum) or an object.
func (c *ReputationCheck) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Min = Level(s)
		c.Max = ""
		return nil
	}
	type alias ReputationCheck
	aux := (*alias)(c)
	return json.Unmarshal(data, aux)
}

// AtLeast returns a NumberCheck with only a minimum.
func AtLeast(n int) NumberCheck {
	return NumberCheck{Min: &n}
}

// Between returns an inclusive range NumberCheck.
func Between(lo, hi int) NumberCheck {
	return NumberCheck{Min: &lo, Max: &hi}
}

// Exactly returns an exact-match NumberCheck.
func Exactly(n int) NumberCheck {
	return NumberCheck{Exact: &n}
}
