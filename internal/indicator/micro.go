package indicator

import "quantdesk/internal/model"

// VolumeRatio computes volume relative to its SMA(period). A zero average
// volume is a hole.
func VolumeRatio(bars []model.Bar, period int) []float64 {
	out := nans(len(bars))
	avg := SMA(model.Volumes(bars), period)
	for i, b := range bars {
		if IsHole(avg[i]) || avg[i] == 0 {
			continue
		}
		out[i] = b.Volume / avg[i]
	}
	return out
}

// VolumeSpike flags bars whose volume exceeds mult times its SMA(period),
// the same window VolumeRatio uses (current bar included). Holes in the
// ratio are never spikes.
func VolumeSpike(bars []model.Bar, period int, mult float64) []bool {
	ratio := VolumeRatio(bars, period)
	out := make([]bool, len(bars))
	for i, r := range ratio {
		out[i] = !IsHole(r) && r > mult
	}
	return out
}

// Imbalance computes the smoothed buy/sell pressure proxy
// ((close−low) − (high−close)) / (high−low), averaged over period bars.
// Flat bars contribute zero pressure.
func Imbalance(bars []model.Bar, period int) []float64 {
	raw := make([]float64, len(bars))
	for i, b := range bars {
		rng := b.High - b.Low
		if rng == 0 {
			raw[i] = 0
			continue
		}
		raw[i] = ((b.Close - b.Low) - (b.High - b.Close)) / rng
	}
	return SMA(raw, period)
}
