package indicator

import (
	"math"

	"quantdesk/internal/model"
)

// TrueRange computes the per-bar true range. Bar 0 uses high−low since no
// previous close exists.
func TrueRange(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		hl := b.High - b.Low
		if i == 0 {
			out[i] = hl
			continue
		}
		prev := bars[i-1].Close
		out[i] = math.Max(hl, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
	}
	return out
}

// ATR computes the Average True Range: SMA seed over the first period true
// ranges, Wilder smoothing afterwards.
func ATR(bars []model.Bar, period int) []float64 {
	out := nans(len(bars))
	if period < 1 || len(bars) < period {
		return out
	}
	tr := TrueRange(bars)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	cur := sum / float64(period)
	out[period-1] = cur
	p := float64(period)
	for i := period; i < len(bars); i++ {
		cur = (cur*(p-1) + tr[i]) / p
		out[i] = cur
	}
	return out
}

// SuperTrendResult holds the SuperTrend line and its direction channel
// (+1 uptrend, −1 downtrend).
type SuperTrendResult struct {
	Line      []float64
	Direction []float64
}

// SuperTrend computes ATR bands around the bar midpoint and flips direction
// when the close breaches the previous bar's band. The line tracks the lower
// band in an uptrend and the upper band in a downtrend.
func SuperTrend(bars []model.Bar, period int, mult float64) SuperTrendResult {
	n := len(bars)
	line := nans(n)
	dir := nans(n)
	atr := ATR(bars, period)
	upper := nans(n)
	lower := nans(n)
	for i, b := range bars {
		if IsHole(atr[i]) {
			continue
		}
		hl2 := (b.High + b.Low) / 2
		upper[i] = hl2 + mult*atr[i]
		lower[i] = hl2 - mult*atr[i]
	}
	prevDir := 1.0
	for i := 1; i < n; i++ {
		if IsHole(upper[i]) || IsHole(upper[i-1]) {
			continue
		}
		d := prevDir
		if bars[i].Close > upper[i-1] {
			d = 1
		} else if bars[i].Close < lower[i-1] {
			d = -1
		}
		dir[i] = d
		prevDir = d
		if d == 1 {
			line[i] = lower[i]
		} else {
			line[i] = upper[i]
		}
	}
	return SuperTrendResult{Line: line, Direction: dir}
}
