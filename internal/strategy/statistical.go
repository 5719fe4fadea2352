package strategy

import (
	"math"

	"quantdesk/internal/indicator"
	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
)

// Filter states reported by the statistical output.
const (
	stateAccelerating = "ACCELERATING"
	stateDecelerating = "DECELERATING"
)

func kalmanFilter() *Strategy {
	return define("kalman_filter", "Kalman Filter Trend", CategoryStatistical,
		"Adaptive trend estimation with a scalar Kalman filter; signals on velocity zero-crossings.",
		[]paramDef{floatParam("process_noise", 0.01), floatParam("measurement_noise", 1.0),
			intParam("lookback", 20)},
		func(p Params) error {
			if p["process_noise"] <= 0 || p["measurement_noise"] <= 0 {
				return model.ErrInvalidParams("noise parameters must be positive")
			}
			return nil
		},
		func(bars []model.Bar, p Params) (*Result, error) {
			kf := indicator.Kalman(model.Closes(bars),
				p.Float("process_noise"), p.Float("measurement_noise"), p.Int("lookback"))
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if indicator.IsHole(kf.Velocity[i]) || indicator.IsHole(kf.Velocity[i-1]) {
					continue
				}
				if kf.Velocity[i] > 0 && kf.Velocity[i-1] <= 0 {
					signals = append(signals, buyAt(bars[i]))
				} else if kf.Velocity[i] < 0 && kf.Velocity[i-1] >= 0 {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			return &Result{
				Signals: signals,
				Indicators: map[string][]float64{
					"kalman": kf.Filtered, "kalman_velocity": kf.Velocity,
				},
				Output: kalmanOutput(kf),
			}, nil
		})
}

func hmmRegime() *Strategy {
	return define("hmm_regime", "Hidden Markov Regime Detection", CategoryStatistical,
		"Two-state regime classification from the rolling return distribution.",
		[]paramDef{intParam("lookback", 30)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			rg := indicator.Regime(model.Closes(bars), p.Int("lookback"))
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if indicator.IsHole(rg.Regime[i]) || indicator.IsHole(rg.Regime[i-1]) {
					continue
				}
				if rg.Regime[i] == indicator.RegimeBull && rg.Regime[i-1] == indicator.RegimeBear {
					s := buyAt(bars[i])
					s.Label = "Entering bullish regime"
					signals = append(signals, s)
				} else if rg.Regime[i] == indicator.RegimeBear && rg.Regime[i-1] == indicator.RegimeBull {
					s := sellAt(bars[i])
					s.Label = "Entering bearish regime"
					signals = append(signals, s)
				}
			}
			return &Result{
				Signals: signals,
				Indicators: map[string][]float64{
					"regime": rg.Regime, "rolling_vol": rg.Vol,
				},
				Output: regimeOutput(rg),
			}, nil
		})
}

func kalmanOutput(kf indicator.KalmanResult) model.StatisticalOutput {
	hole := sanitize.Value(math.NaN())
	out := model.StatisticalOutput{
		FilterState: stateDecelerating, EstimatedPrice: hole, Velocity: hole, Gain: hole,
	}
	if est, ok := lastValid(kf.Filtered); ok {
		out.EstimatedPrice = sanitize.Value(est)
	}
	if g, ok := lastValid(kf.Gain); ok {
		out.Gain = sanitize.Value(g)
	}
	v, ok := lastValid(kf.Velocity)
	if !ok {
		return out
	}
	out.Velocity = sanitize.Value(v)
	if n := len(kf.Velocity); n >= 2 && !indicator.IsHole(kf.Velocity[n-2]) && v > kf.Velocity[n-2] {
		out.FilterState = stateAccelerating
	}
	return out
}

func regimeOutput(rg indicator.RegimeResult) model.StatisticalOutput {
	hole := sanitize.Value(math.NaN())
	out := model.StatisticalOutput{
		FilterState: "BEARISH_REGIME", EstimatedPrice: hole, Velocity: hole, Gain: hole,
	}
	if r, ok := lastValid(rg.Regime); ok && r == indicator.RegimeBull {
		out.FilterState = "BULLISH_REGIME"
	}
	if m, ok := lastValid(rg.MeanRet); ok {
		out.Velocity = sanitize.Value(m)
	}
	if v, ok := lastValid(rg.Vol); ok {
		out.Gain = sanitize.Value(v)
	}
	return out
}
