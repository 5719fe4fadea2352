package strategy

import (
	"math"

	"quantdesk/internal/indicator"
	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
)

func maCrossover() *Strategy {
	return define("ma_crossover", "Moving Average Crossover", CategoryTrend,
		"Generates signals when fast SMA crosses above/below slow SMA.",
		[]paramDef{intParam("fast_period", 10), intParam("slow_period", 30)},
		fastSlow("fast_period", "slow_period"),
		func(bars []model.Bar, p Params) (*Result, error) {
			closes := model.Closes(bars)
			fast := indicator.SMA(closes, p.Int("fast_period"))
			slow := indicator.SMA(closes, p.Int("slow_period"))
			return &Result{
				Signals:    crossoverSignals(bars, fast, slow),
				Indicators: map[string][]float64{"fast_sma": fast, "slow_sma": slow},
				Output:     trendOutput(closes, fast, slow),
			}, nil
		})
}

func emaStrategy() *Strategy {
	return define("ema_strategy", "EMA Strategy", CategoryTrend,
		"Exponential MA crossover with faster response to price changes.",
		[]paramDef{intParam("fast_period", 9), intParam("slow_period", 21)},
		fastSlow("fast_period", "slow_period"),
		func(bars []model.Bar, p Params) (*Result, error) {
			closes := model.Closes(bars)
			fast := indicator.EMA(closes, p.Int("fast_period"))
			slow := indicator.EMA(closes, p.Int("slow_period"))
			return &Result{
				Signals:    crossoverSignals(bars, fast, slow),
				Indicators: map[string][]float64{"fast_ema": fast, "slow_ema": slow},
				Output:     trendOutput(closes, fast, slow),
			}, nil
		})
}

func macdSignal() *Strategy {
	return define("macd_signal", "MACD Signal", CategoryTrend,
		"MACD line vs signal line crossover, filtered to crosses below zero.",
		[]paramDef{intParam("fast", 12), intParam("slow", 26), intParam("signal", 9)},
		fastSlow("fast", "slow"),
		func(bars []model.Bar, p Params) (*Result, error) {
			closes := model.Closes(bars)
			macd := indicator.MACD(closes, p.Int("fast"), p.Int("slow"), p.Int("signal"))
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if indicator.IsHole(macd.Line[i]) || indicator.IsHole(macd.Signal[i]) ||
					indicator.IsHole(macd.Line[i-1]) || indicator.IsHole(macd.Signal[i-1]) {
					continue
				}
				crossedUp := macd.Line[i] > macd.Signal[i] && macd.Line[i-1] <= macd.Signal[i-1]
				crossedDown := macd.Line[i] < macd.Signal[i] && macd.Line[i-1] >= macd.Signal[i-1]
				// Only crosses on the trend side of zero count: bullish
				// crosses below the axis, bearish above it.
				if crossedUp && macd.Line[i] < 0 && macd.Signal[i] < 0 {
					signals = append(signals, buyAt(bars[i]))
				} else if crossedDown && macd.Line[i] > 0 && macd.Signal[i] > 0 {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			return &Result{
				Signals: signals,
				Indicators: map[string][]float64{
					"macd": macd.Line, "signal": macd.Signal, "histogram": macd.Hist,
				},
				Output: trendOutput(closes, macd.Line, macd.Signal),
			}, nil
		})
}

func superTrend() *Strategy {
	return define("supertrend", "Supertrend", CategoryTrend,
		"ATR-based trend following indicator; signals on direction flips.",
		[]paramDef{intParam("period", 10), floatParam("multiplier", 3.0)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			st := indicator.SuperTrend(bars, p.Int("period"), p.Float("multiplier"))
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if indicator.IsHole(st.Direction[i]) || indicator.IsHole(st.Direction[i-1]) {
					continue
				}
				if st.Direction[i] == 1 && st.Direction[i-1] == -1 {
					signals = append(signals, buyAt(bars[i]))
				} else if st.Direction[i] == -1 && st.Direction[i-1] == 1 {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			closes := model.Closes(bars)
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"supertrend": st.Line, "direction": st.Direction},
				Output:     trendOutput(closes, closes, st.Line),
			}, nil
		})
}

func donchianBreakout() *Strategy {
	return define("donchian_breakout", "Donchian Channel Breakout", CategoryTrend,
		"Breakout signals when price breaches Donchian channel highs/lows.",
		[]paramDef{intParam("period", 20)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			ch := indicator.Donchian(bars, p.Int("period"))
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if indicator.IsHole(ch.Upper[i-1]) || indicator.IsHole(ch.Lower[i-1]) {
					continue
				}
				if bars[i].Close > ch.Upper[i-1] {
					signals = append(signals, buyAt(bars[i]))
				} else if bars[i].Close < ch.Lower[i-1] {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			closes := model.Closes(bars)
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"upper": ch.Upper, "lower": ch.Lower, "middle": ch.Mid},
				Output:     trendOutput(closes, closes, ch.Mid),
			}, nil
		})
}

// trendOutput summarizes last-bar posture from a fast/slow channel pair.
// Strength is the fast/slow gap as a percentage of the last close.
func trendOutput(closes, fast, slow []float64) model.TrendOutput {
	out := model.TrendOutput{
		Direction: model.DirectionNeutral,
		FastValue: sanitize.Value(math.NaN()),
		SlowValue: sanitize.Value(math.NaN()),
	}
	out.StrengthPct = sanitize.Value(math.NaN())
	f, okF := lastValid(fast)
	s, okS := lastValid(slow)
	if okF {
		out.FastValue = sanitize.Value(f)
	}
	if okS {
		out.SlowValue = sanitize.Value(s)
	}
	if !okF || !okS {
		return out
	}
	switch {
	case f > s:
		out.Direction = model.DirectionBullish
	case f < s:
		out.Direction = model.DirectionBearish
	}
	if c, ok := lastValid(closes); ok && c != 0 {
		out.StrengthPct = sanitize.Value(math.Abs(f-s) / c * 100)
	}
	return out
}
