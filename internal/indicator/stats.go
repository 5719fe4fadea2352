package indicator

import (
	"math"

	"quantdesk/internal/model"
)

// ZScore computes (value − SMA(period)) / stdev(period). A zero stdev is a
// hole, not ±Inf.
func ZScore(values []float64, period int) []float64 {
	out := nans(len(values))
	mean := SMA(values, period)
	std := StdDev(values, period)
	for i := range values {
		if IsHole(mean[i]) || IsHole(std[i]) || std[i] == 0 {
			continue
		}
		out[i] = (values[i] - mean[i]) / std[i]
	}
	return out
}

// CCI computes the Commodity Channel Index over the typical price with the
// conventional 0.015 scaling constant. A zero mean absolute deviation is a
// hole.
func CCI(bars []model.Bar, period int) []float64 {
	out := nans(len(bars))
	if period < 1 || len(bars) < period {
		return out
	}
	tp := make([]float64, len(bars))
	for i, b := range bars {
		tp[i] = (b.High + b.Low + b.Close) / 3
	}
	sma := SMA(tp, period)
	for i := period - 1; i < len(bars); i++ {
		if IsHole(sma[i]) {
			continue
		}
		mad := 0.0
		for j := i - period + 1; j <= i; j++ {
			mad += math.Abs(tp[j] - sma[i])
		}
		mad /= float64(period)
		if mad == 0 {
			continue
		}
		out[i] = (tp[i] - sma[i]) / (0.015 * mad)
	}
	return out
}
