package strategy

import (
	"math"

	"quantdesk/internal/indicator"
	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
)

// mlWeights blends the four normalized features into a composite score.
type mlWeights struct {
	rsi, macd, roc, volume float64
}

// mlFeatures holds the per-bar normalized feature channels, each in [0,1]
// with 0.5 neutral.
type mlFeatures struct {
	rsi, macd, roc, volume []float64
}

func computeMLFeatures(bars []model.Bar, rocPeriod int) mlFeatures {
	closes := model.Closes(bars)
	rsi := indicator.RSI(closes, 14)
	macd := indicator.MACD(closes, 12, 26, 9)
	roc := indicator.ROC(closes, rocPeriod)
	ratio := indicator.VolumeRatio(bars, 20)

	n := len(bars)
	f := mlFeatures{
		rsi:    make([]float64, n),
		macd:   make([]float64, n),
		roc:    make([]float64, n),
		volume: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		f.rsi[i] = normalizeFeature(rsi[i], 0, 100)
		if indicator.IsHole(macd.Hist[i]) || closes[i] == 0 {
			f.macd[i] = math.NaN()
		} else {
			f.macd[i] = 0.5 + clamp(macd.Hist[i]/closes[i], -0.05, 0.05)*10
		}
		if indicator.IsHole(roc[i]) {
			f.roc[i] = math.NaN()
		} else {
			f.roc[i] = 0.5 + clamp(roc[i]/100, -0.1, 0.1)*5
		}
		if indicator.IsHole(ratio[i]) {
			f.volume[i] = math.NaN()
		} else {
			f.volume[i] = clamp(ratio[i]/2, 0, 1)
		}
	}
	return f
}

func normalizeFeature(v, lo, hi float64) float64 {
	if indicator.IsHole(v) {
		return math.NaN()
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}

// compositeScore centers each feature at zero, applies the weights and
// smooths with an EMA. Bars missing any feature are holes.
func compositeScore(f mlFeatures, w mlWeights, smoothing int) []float64 {
	raw := make([]float64, len(f.rsi))
	for i := range raw {
		if indicator.IsHole(f.rsi[i]) || indicator.IsHole(f.macd[i]) ||
			indicator.IsHole(f.roc[i]) || indicator.IsHole(f.volume[i]) {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = (f.rsi[i]-0.5)*w.rsi + (f.macd[i]-0.5)*w.macd +
			(f.roc[i]-0.5)*w.roc + (f.volume[i]-0.5)*w.volume
	}
	return indicator.EMA(raw, smoothing)
}

func thresholdSignals(bars []model.Bar, score []float64, entry float64) []model.Signal {
	var out []model.Signal
	for i := 1; i < len(bars); i++ {
		if crossUp(score, entry, i) {
			out = append(out, buyAt(bars[i]))
		} else if crossDown(score, -entry, i) {
			out = append(out, sellAt(bars[i]))
		}
	}
	return out
}

func mlOutput(f mlFeatures, score []float64) model.MLOutput {
	out := model.MLOutput{
		Prediction:      model.PredictionFlat,
		ConfidenceScore: sanitize.Value(math.NaN()),
		Features:        map[string]sanitize.Float{},
	}
	for name, ch := range map[string][]float64{
		"rsi": f.rsi, "macd_hist": f.macd, "roc": f.roc, "volume_ratio": f.volume,
	} {
		if v, ok := lastValid(ch); ok {
			out.Features[name] = sanitize.Value(v)
		} else {
			out.Features[name] = sanitize.Value(math.NaN())
		}
	}
	s, ok := lastValid(score)
	if !ok {
		return out
	}
	out.ConfidenceScore = sanitize.Value(math.Min(1, math.Abs(s)*10))
	switch {
	case s > 0.02:
		out.Prediction = model.PredictionLong
	case s < -0.02:
		out.Prediction = model.PredictionShort
	}
	return out
}

func lstmProxy() *Strategy {
	return define("lstm_proxy", "LSTM Forecast (Proxy)", CategoryML,
		"Multi-indicator ensemble simulating LSTM-style sequential pattern recognition.",
		[]paramDef{intParam("lookback", 30)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			f := computeMLFeatures(bars, 10)
			w := mlWeights{rsi: 0.3, macd: 0.4, roc: 0.2, volume: 0.1}
			score := compositeScore(f, w, p.Int("lookback"))
			return &Result{
				Signals:    thresholdSignals(bars, score, 0.05),
				Indicators: map[string][]float64{"ml_composite": score},
				Output:     mlOutput(f, score),
			}, nil
		})
}

func gbmProxy() *Strategy {
	return define("gbm_proxy", "Gradient Boosting (Proxy)", CategoryML,
		"Feature-engineered ensemble simulating gradient boosting classification.",
		[]paramDef{intParam("lookback", 20)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			// The lookback drives the momentum feature horizon; smoothing
			// stays short to keep the boosted score responsive.
			f := computeMLFeatures(bars, p.Int("lookback"))
			w := mlWeights{rsi: 0.2, macd: 0.2, roc: 0.4, volume: 0.2}
			score := compositeScore(f, w, 5)
			return &Result{
				Signals:    thresholdSignals(bars, score, 0.03),
				Indicators: map[string][]float64{"gbm_score": score},
				Output:     mlOutput(f, score),
			}, nil
		})
}
