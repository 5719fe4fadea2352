// Package sanitize guarantees that no non-finite float ever reaches a JSON
// encoder. Indicator channels carry math.NaN for positions that cannot be
// computed; Float marshals those holes as null so strict parsers on the
// client side never choke.
package sanitize

import (
	"math"
	"strconv"
)

// Float is a float64 that serializes NaN and ±Inf as JSON null.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null becomes NaN so the
// hole survives a round trip.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Valid reports whether the value is finite.
func (f Float) Valid() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Value converts a raw float64 into a null-safe Float.
func Value(v float64) Float { return Float(v) }

// Channel converts a raw indicator series into a null-safe channel,
// preserving length.
func Channel(values []float64) []Float {
	out := make([]Float, len(values))
	for i, v := range values {
		out[i] = Float(v)
	}
	return out
}

// Channels converts a map of raw indicator series into null-safe channels.
func Channels(m map[string][]float64) map[string][]Float {
	if m == nil {
		return nil
	}
	out := make(map[string][]Float, len(m))
	for k, v := range m {
		out[k] = Channel(v)
	}
	return out
}
