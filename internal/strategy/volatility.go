package strategy

import (
	"math"
	"sort"

	"quantdesk/internal/indicator"
	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
)

func atrBreakout() *Strategy {
	return define("atr_breakout", "ATR Breakout", CategoryVolatility,
		"Breakout signals when the close moves more than a multiple of ATR from the prior close.",
		[]paramDef{intParam("period", 14), floatParam("multiplier", 1.5)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			atr := indicator.ATR(bars, p.Int("period"))
			mult := p.Float("multiplier")
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if indicator.IsHole(atr[i-1]) {
					continue
				}
				if bars[i].Close > bars[i-1].Close+mult*atr[i-1] {
					signals = append(signals, buyAt(bars[i]))
				} else if bars[i].Close < bars[i-1].Close-mult*atr[i-1] {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"atr": atr},
				Output:     volatilityOutput(atr),
			}, nil
		})
}

func keltnerChannel() *Strategy {
	return define("keltner_channel", "Keltner Channel", CategoryVolatility,
		"EMA-based channel with ATR bands; signals on channel breakouts.",
		[]paramDef{intParam("ema_period", 20), intParam("atr_period", 14), floatParam("multiplier", 2.0)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			kc := indicator.Keltner(bars, p.Int("ema_period"), p.Int("atr_period"), p.Float("multiplier"))
			var signals []model.Signal
			for i := range bars {
				if indicator.IsHole(kc.Upper[i]) || indicator.IsHole(kc.Lower[i]) {
					continue
				}
				if bars[i].Close > kc.Upper[i] {
					signals = append(signals, buyAt(bars[i]))
				} else if bars[i].Close < kc.Lower[i] {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			atr := indicator.ATR(bars, p.Int("atr_period"))
			return &Result{
				Signals: signals,
				Indicators: map[string][]float64{
					"keltner_ema": kc.Mid, "keltner_upper": kc.Upper, "keltner_lower": kc.Lower,
				},
				Output: volatilityOutput(atr),
			}, nil
		})
}

// volatilityOutput classifies the current ATR against its median: above
// 1.5x is HIGH, below 0.7x is LOW. Breakout probability is the capped
// current/median ratio.
func volatilityOutput(atr []float64) model.VolatilityOutput {
	hole := sanitize.Value(math.NaN())
	out := model.VolatilityOutput{
		Regime: model.VolRegimeNormal, CurrentATR: hole, MedianATR: hole, BreakoutProb: hole,
	}
	cur, ok := lastValid(atr)
	if !ok {
		return out
	}
	out.CurrentATR = sanitize.Value(cur)
	med := median(atr)
	if math.IsNaN(med) || med == 0 {
		return out
	}
	out.MedianATR = sanitize.Value(med)
	out.BreakoutProb = sanitize.Value(math.Min(1, cur/med))
	switch {
	case cur > med*1.5:
		out.Regime = model.VolRegimeHigh
	case cur < med*0.7:
		out.Regime = model.VolRegimeLow
	}
	return out
}

func median(series []float64) float64 {
	var vals []float64
	for _, v := range series {
		if !indicator.IsHole(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}
