package strategy

import (
	"math"

	"quantdesk/internal/indicator"
	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
)

func rsiStrategy() *Strategy {
	return define("rsi_strategy", "RSI Strategy", CategoryMomentum,
		"Buys on RSI recovering from oversold, sells on rolling over from overbought.",
		[]paramDef{intParam("period", 14), floatParam("oversold", 30), floatParam("overbought", 70)},
		func(p Params) error {
			if p["oversold"] >= p["overbought"] {
				return model.ErrInvalidParams("oversold (%v) must be below overbought (%v)",
					p["oversold"], p["overbought"])
			}
			return nil
		},
		func(bars []model.Bar, p Params) (*Result, error) {
			rsi := indicator.RSI(model.Closes(bars), p.Int("period"))
			os, ob := p.Float("oversold"), p.Float("overbought")
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if crossUp(rsi, os, i) {
					signals = append(signals, buyAt(bars[i]))
				} else if crossDown(rsi, ob, i) {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"rsi": rsi},
				Output:     momentumOutput(rsi, os, ob),
			}, nil
		})
}

func stochastic() *Strategy {
	return define("stochastic", "Stochastic Oscillator", CategoryMomentum,
		"K/D crossover on the stochastic oscillator inside extreme zones.",
		[]paramDef{intParam("k_period", 14), intParam("d_period", 3),
			floatParam("oversold", 20), floatParam("overbought", 80)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			st := indicator.Stochastic(bars, p.Int("k_period"), p.Int("d_period"))
			os, ob := p.Float("oversold"), p.Float("overbought")
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if indicator.IsHole(st.K[i]) || indicator.IsHole(st.D[i]) ||
					indicator.IsHole(st.K[i-1]) || indicator.IsHole(st.D[i-1]) {
					continue
				}
				kUp := st.K[i] > st.D[i] && st.K[i-1] <= st.D[i-1]
				kDown := st.K[i] < st.D[i] && st.K[i-1] >= st.D[i-1]
				if kUp && st.K[i] < os {
					signals = append(signals, buyAt(bars[i]))
				} else if kDown && st.K[i] > ob {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"stoch_k": st.K, "stoch_d": st.D},
				Output:     momentumOutput(st.K, os, ob),
			}, nil
		})
}

func rocStrategy() *Strategy {
	return define("roc_strategy", "Rate of Change", CategoryMomentum,
		"Momentum signal on N-period rate-of-change sign changes.",
		[]paramDef{intParam("period", 12)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			roc := indicator.ROC(model.Closes(bars), p.Int("period"))
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if crossUp(roc, 0, i) {
					signals = append(signals, buyAt(bars[i]))
				} else if crossDown(roc, 0, i) {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"roc": roc},
				Output:     nil,
			}, nil
		})
}

func cciStrategy() *Strategy {
	return define("cci_strategy", "Commodity Channel Index", CategoryMomentum,
		"CCI crossing out of oversold/overbought extremes.",
		[]paramDef{intParam("period", 20), floatParam("oversold", -100), floatParam("overbought", 100)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			cci := indicator.CCI(bars, p.Int("period"))
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if crossUp(cci, p.Float("oversold"), i) {
					signals = append(signals, buyAt(bars[i]))
				} else if crossDown(cci, p.Float("overbought"), i) {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"cci": cci},
				Output:     nil,
			}, nil
		})
}

// momentumOutput classifies the last oscillator reading into a zone.
func momentumOutput(osc []float64, oversold, overbought float64) model.MomentumOutput {
	out := model.MomentumOutput{Zone: model.ZoneNeutral, RSIValue: sanitize.Value(math.NaN())}
	v, ok := lastValid(osc)
	if !ok {
		return out
	}
	out.RSIValue = sanitize.Value(v)
	switch {
	case v > overbought:
		out.Zone = model.ZoneOverbought
	case v < oversold:
		out.Zone = model.ZoneOversold
	}
	return out
}
