// Package indicator implements the series primitives the strategy engine is
// built on. Every function takes aligned input channels and returns channels
// of the same length. Positions that cannot be computed (insufficient
// lookback, division by zero) hold math.NaN; downstream serialization turns
// those holes into JSON null.
//
// Each primitive is written as a streaming recurrence (seed + O(1) update)
// rather than a windowed rescan, so long series stay cheap.
package indicator

import "math"

// Hole marks a position that cannot be computed.
func Hole() float64 { return math.NaN() }

// IsHole reports whether v is a hole or otherwise non-finite.
func IsHole(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Returns computes the per-bar fractional close-to-close return. Position 0
// is a hole.
func Returns(closes []float64) []float64 {
	out := nans(len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out[i] = closes[i]/closes[i-1] - 1
	}
	return out
}
