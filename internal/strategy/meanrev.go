package strategy

import (
	"math"

	"quantdesk/internal/indicator"
	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
)

func bollingerReversion() *Strategy {
	return define("bollinger_reversion", "Bollinger Bands Reversion", CategoryMeanRev,
		"Mean reversion on Bollinger Band touches from inside the bands.",
		[]paramDef{intParam("period", 20), floatParam("std_dev", 2.0)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			closes := model.Closes(bars)
			bb := indicator.Bollinger(closes, p.Int("period"), p.Float("std_dev"))
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if indicator.IsHole(bb.Upper[i]) || indicator.IsHole(bb.Lower[i]) ||
					indicator.IsHole(bb.Upper[i-1]) || indicator.IsHole(bb.Lower[i-1]) {
					continue
				}
				// A touch only counts when the prior close was still inside
				// the band, so a close hugging the band doesn't re-fire.
				if closes[i] <= bb.Lower[i] && closes[i-1] > bb.Lower[i-1] {
					signals = append(signals, buyAt(bars[i]))
				} else if closes[i] >= bb.Upper[i] && closes[i-1] < bb.Upper[i-1] {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			return &Result{
				Signals: signals,
				Indicators: map[string][]float64{
					"bb_upper": bb.Upper, "bb_middle": bb.Mid, "bb_lower": bb.Lower,
				},
				Output: bandReversionOutput(closes, bb.Mid, bb.Upper, bb.Lower),
			}, nil
		})
}

func zscoreReversion() *Strategy {
	return define("zscore_reversion", "Z-Score Reversion", CategoryMeanRev,
		"Z-score of price against its rolling mean; enters when an extreme deviation reverts.",
		[]paramDef{intParam("period", 20), floatParam("threshold", 2.0)},
		func(p Params) error {
			if p["threshold"] <= 0 {
				return model.ErrInvalidParams("threshold must be positive, got %v", p["threshold"])
			}
			return nil
		},
		func(bars []model.Bar, p Params) (*Result, error) {
			closes := model.Closes(bars)
			z := indicator.ZScore(closes, p.Int("period"))
			thr := p.Float("threshold")
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				// Entry fires when the score snaps back through the
				// threshold, not while it is still stretching.
				if crossUp(z, -thr, i) {
					signals = append(signals, buyAt(bars[i]))
				} else if crossDown(z, thr, i) {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			mid := indicator.SMA(closes, p.Int("period"))
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"zscore": z, "mean": mid},
				Output:     zscoreOutput(z),
			}, nil
		})
}

func vwapReversion() *Strategy {
	return define("vwap_reversion", "VWAP Reversion", CategoryMeanRev,
		"Reversion towards the volume-weighted average price after a stretch beyond the deviation band.",
		[]paramDef{floatParam("deviation_pct", 2.0)},
		func(p Params) error {
			if p["deviation_pct"] <= 0 {
				return model.ErrInvalidParams("deviation_pct must be positive, got %v", p["deviation_pct"])
			}
			return nil
		},
		func(bars []model.Bar, p Params) (*Result, error) {
			closes := model.Closes(bars)
			vwap := indicator.VWAP(bars)
			dev := p.Float("deviation_pct") / 100
			var signals []model.Signal
			stretchedBelow, stretchedAbove := false, false
			for i := range bars {
				if indicator.IsHole(vwap[i]) {
					continue
				}
				switch {
				case closes[i] < vwap[i]*(1-dev):
					stretchedBelow = true
				case closes[i] > vwap[i]*(1+dev):
					stretchedAbove = true
				}
				if stretchedBelow && closes[i] > vwap[i] {
					signals = append(signals, buyAt(bars[i]))
					stretchedBelow = false
				} else if stretchedAbove && closes[i] < vwap[i] {
					signals = append(signals, sellAt(bars[i]))
					stretchedAbove = false
				}
			}
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"vwap": vwap},
				Output:     vwapOutput(closes, vwap),
			}, nil
		})
}

// bandReversionOutput reports where the last close sits between the bands.
// DistanceFromMean is the signed fraction from mid to the touched band,
// clamped to [-1,1]; Position is the %B value in [0,1].
func bandReversionOutput(closes, mid, upper, lower []float64) model.MeanReversionOutput {
	hole := sanitize.Value(math.NaN())
	out := model.MeanReversionOutput{DistanceFromMean: hole, BandwidthPct: hole, Position: hole}
	c, okC := lastValid(closes)
	m, okM := lastValid(mid)
	u, okU := lastValid(upper)
	l, okL := lastValid(lower)
	if !okC || !okM || !okU || !okL {
		return out
	}
	if u != m {
		out.DistanceFromMean = sanitize.Value(clamp((c-m)/(u-m), -1, 1))
	}
	if m != 0 {
		out.BandwidthPct = sanitize.Value((u - l) / m * 100)
	}
	if u != l {
		out.Position = sanitize.Value(clamp((c-l)/(u-l), 0, 1))
	}
	return out
}

func zscoreOutput(z []float64) model.MeanReversionOutput {
	hole := sanitize.Value(math.NaN())
	out := model.MeanReversionOutput{DistanceFromMean: hole, BandwidthPct: hole, Position: hole}
	v, ok := lastValid(z)
	if !ok {
		return out
	}
	// Map the z-score onto the band scale used by the UI: ±3σ spans the
	// full [-1,1] range.
	out.DistanceFromMean = sanitize.Value(clamp(v/3, -1, 1))
	out.Position = sanitize.Value(clamp((v+3)/6, 0, 1))
	return out
}

func vwapOutput(closes, vwap []float64) model.MeanReversionOutput {
	hole := sanitize.Value(math.NaN())
	out := model.MeanReversionOutput{DistanceFromMean: hole, BandwidthPct: hole, Position: hole}
	c, okC := lastValid(closes)
	v, okV := lastValid(vwap)
	if !okC || !okV || v == 0 {
		return out
	}
	frac := (c - v) / v
	// ±5% from VWAP spans the full band scale.
	out.DistanceFromMean = sanitize.Value(clamp(frac/0.05, -1, 1))
	out.Position = sanitize.Value(clamp((frac+0.05)/0.1, 0, 1))
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
