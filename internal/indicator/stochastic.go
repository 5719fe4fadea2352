package indicator

import "quantdesk/internal/model"

// StochasticResult holds the %K and %D channels.
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic computes the stochastic oscillator. %K compares the close to
// the high/low range of the trailing kPeriod bars; a flat range is a hole.
// %D is the SMA(dPeriod) of %K.
func Stochastic(bars []model.Bar, kPeriod, dPeriod int) StochasticResult {
	k := nans(len(bars))
	if kPeriod < 1 {
		return StochasticResult{K: k, D: nans(len(bars))}
	}
	for i := kPeriod - 1; i < len(bars); i++ {
		hi := bars[i].High
		lo := bars[i].Low
		for j := i - kPeriod + 1; j < i; j++ {
			if bars[j].High > hi {
				hi = bars[j].High
			}
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
		}
		if hi == lo {
			continue
		}
		k[i] = (bars[i].Close - lo) / (hi - lo) * 100
	}
	return StochasticResult{K: k, D: SMA(k, dPeriod)}
}
