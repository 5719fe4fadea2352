package indicator

import "quantdesk/internal/model"

// VWAP computes the cumulative volume-weighted average of the typical price
// (high+low+close)/3. Bars before any volume has traded are holes.
func VWAP(bars []model.Bar) []float64 {
	out := nans(len(bars))
	var cumPV, cumVol float64
	for i, b := range bars {
		tp := (b.High + b.Low + b.Close) / 3
		cumPV += tp * b.Volume
		cumVol += b.Volume
		if cumVol == 0 {
			continue
		}
		out[i] = cumPV / cumVol
	}
	return out
}
