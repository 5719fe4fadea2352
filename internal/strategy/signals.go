package strategy

import (
	"quantdesk/internal/indicator"
	"quantdesk/internal/model"
)

// normalizeSignals enforces the signal stream contract: timestamps stay in
// order, duplicate timestamps collapse to the first, and same-side runs
// collapse to their first signal so the stream alternates BUY/SELL.
func normalizeSignals(in []model.Signal) []model.Signal {
	out := make([]model.Signal, 0, len(in))
	var lastSide model.Side
	lastTS := int64(-1)
	for _, s := range in {
		if s.TS == lastTS {
			continue
		}
		lastTS = s.TS
		if s.Side == lastSide {
			continue
		}
		out = append(out, s)
		lastSide = s.Side
	}
	return out
}

// crossoverSignals emits BUY when fast crosses above slow and SELL on the
// mirror cross. At the first bar where both channels become valid the
// current ordering is treated as a fresh cross, so a series that starts
// with fast above slow opens with a BUY.
func crossoverSignals(bars []model.Bar, fast, slow []float64) []model.Signal {
	var out []model.Signal
	seeded := false
	for i := range bars {
		if indicator.IsHole(fast[i]) || indicator.IsHole(slow[i]) {
			continue
		}
		if !seeded {
			seeded = true
			switch {
			case fast[i] > slow[i]:
				out = append(out, model.Signal{TS: bars[i].TS, Side: model.SideBuy, Price: bars[i].Close})
			case fast[i] < slow[i]:
				out = append(out, model.Signal{TS: bars[i].TS, Side: model.SideSell, Price: bars[i].Close})
			}
			continue
		}
		if indicator.IsHole(fast[i-1]) || indicator.IsHole(slow[i-1]) {
			continue
		}
		if fast[i] > slow[i] && fast[i-1] <= slow[i-1] {
			out = append(out, model.Signal{TS: bars[i].TS, Side: model.SideBuy, Price: bars[i].Close})
		} else if fast[i] < slow[i] && fast[i-1] >= slow[i-1] {
			out = append(out, model.Signal{TS: bars[i].TS, Side: model.SideSell, Price: bars[i].Close})
		}
	}
	return out
}

// crossUp reports a valid upward cross of series through level between bars
// i-1 and i.
func crossUp(series []float64, level float64, i int) bool {
	if i < 1 || indicator.IsHole(series[i]) || indicator.IsHole(series[i-1]) {
		return false
	}
	return series[i-1] <= level && series[i] > level
}

// crossDown reports a valid downward cross of series through level.
func crossDown(series []float64, level float64, i int) bool {
	if i < 1 || indicator.IsHole(series[i]) || indicator.IsHole(series[i-1]) {
		return false
	}
	return series[i-1] >= level && series[i] < level
}

func buyAt(b model.Bar) model.Signal {
	return model.Signal{TS: b.TS, Side: model.SideBuy, Price: b.Close}
}

func sellAt(b model.Bar) model.Signal {
	return model.Signal{TS: b.TS, Side: model.SideSell, Price: b.Close}
}
