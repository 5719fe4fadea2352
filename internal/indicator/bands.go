package indicator

import "quantdesk/internal/model"

// BollingerResult holds the three Bollinger band channels.
type BollingerResult struct {
	Mid   []float64
	Upper []float64
	Lower []float64
}

// Bollinger computes SMA(period) mid band with upper/lower at mid ± k·stdev.
func Bollinger(closes []float64, period int, k float64) BollingerResult {
	mid := SMA(closes, period)
	std := StdDev(closes, period)
	upper := nans(len(closes))
	lower := nans(len(closes))
	for i := range closes {
		if IsHole(mid[i]) || IsHole(std[i]) {
			continue
		}
		upper[i] = mid[i] + k*std[i]
		lower[i] = mid[i] - k*std[i]
	}
	return BollingerResult{Mid: mid, Upper: upper, Lower: lower}
}

// DonchianResult holds the Donchian channel bounds.
type DonchianResult struct {
	Upper []float64
	Lower []float64
	Mid   []float64
}

// Donchian computes the rolling highest high and lowest low over period bars
// (the current bar included). Breakout rules compare against the previous
// bar's channel.
func Donchian(bars []model.Bar, period int) DonchianResult {
	upper := nans(len(bars))
	lower := nans(len(bars))
	mid := nans(len(bars))
	if period < 1 {
		return DonchianResult{Upper: upper, Lower: lower, Mid: mid}
	}
	for i := period - 1; i < len(bars); i++ {
		hi := bars[i].High
		lo := bars[i].Low
		for j := i - period + 1; j < i; j++ {
			if bars[j].High > hi {
				hi = bars[j].High
			}
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
		}
		upper[i] = hi
		lower[i] = lo
		mid[i] = (hi + lo) / 2
	}
	return DonchianResult{Upper: upper, Lower: lower, Mid: mid}
}

// KeltnerResult holds the Keltner channel bands.
type KeltnerResult struct {
	Mid   []float64
	Upper []float64
	Lower []float64
}

// Keltner computes an EMA mid line with bands at mid ± mult·ATR.
func Keltner(bars []model.Bar, emaPeriod, atrPeriod int, mult float64) KeltnerResult {
	mid := EMA(model.Closes(bars), emaPeriod)
	atr := ATR(bars, atrPeriod)
	upper := nans(len(bars))
	lower := nans(len(bars))
	for i := range bars {
		if IsHole(mid[i]) || IsHole(atr[i]) {
			continue
		}
		upper[i] = mid[i] + mult*atr[i]
		lower[i] = mid[i] - mult*atr[i]
	}
	return KeltnerResult{Mid: mid, Upper: upper, Lower: lower}
}
