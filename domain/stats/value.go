package stats

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Value is a metric cell that may be missing. Missing values are never
// coerced to zero; arithmetic with a missing operand yields missing.
type Value struct {
	V     float64
	Valid bool
}

// Of wraps x, treating NaN and infinities as missing
func Of(x float64) Value {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Value{}
	}
	return Value{V: x, Valid: true}
}

// Missing returns the missing marker
func Missing() Value { return Value{} }

// Float returns the value or NaN when missing
func (v Value) Float() float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.V
}

// Sub returns v - o
func (v Value) Sub(o Value) Value {
	if !v.Valid || !o.Valid {
		return Missing()
	}
	return Of(v.V - o.V)
}

func (v Value) String() string {
	if !v.Valid {
		return "NA"
	}
	return strconv.FormatFloat(v.V, 'g', 6, 64)
}

// MarshalJSON encodes missing values as null
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON accepts a number or null
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Missing()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}

// Floats converts values to a float slice with NaN for missing entries
func Floats(values []Value) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.Float()
	}
	return out
}

// CountValid returns how many entries are present
func CountValid(values []Value) int {
	n := 0
	for _, v := range values {
		if v.Valid {
			n++
		}
	}
	return n
}
