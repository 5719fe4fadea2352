package strategy

import (
	"fmt"

	"quantdesk/internal/indicator"
	"quantdesk/internal/model"
)

func volumeSpike() *Strategy {
	return define("volume_spike", "Volume Spike Detection", CategoryMicro,
		"Detects abnormal volume spikes that often precede price moves.",
		[]paramDef{intParam("lookback", 20), floatParam("threshold", 2.0)},
		nil,
		func(bars []model.Bar, p Params) (*Result, error) {
			ratio := indicator.VolumeRatio(bars, p.Int("lookback"))
			thr := p.Float("threshold")
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if indicator.IsHole(ratio[i]) || ratio[i] <= thr {
					continue
				}
				label := fmt.Sprintf("Volume %.1fx avg", ratio[i])
				if bars[i].Close > bars[i-1].Close {
					s := buyAt(bars[i])
					s.Label = label
					signals = append(signals, s)
				} else if bars[i].Close < bars[i-1].Close {
					s := sellAt(bars[i])
					s.Label = label
					signals = append(signals, s)
				}
			}
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"volume_ratio": ratio},
				Output:     nil,
			}, nil
		})
}

func orderImbalance() *Strategy {
	return define("order_imbalance", "Order Imbalance Detection", CategoryMicro,
		"Detects buy/sell pressure imbalance from OHLC price action.",
		[]paramDef{intParam("lookback", 10), floatParam("threshold", 0.6)},
		func(p Params) error {
			if p["threshold"] <= 0 || p["threshold"] > 1 {
				return model.ErrInvalidParams("threshold must be in (0,1], got %v", p["threshold"])
			}
			return nil
		},
		func(bars []model.Bar, p Params) (*Result, error) {
			imb := indicator.Imbalance(bars, p.Int("lookback"))
			thr := p.Float("threshold")
			var signals []model.Signal
			for i := 1; i < len(bars); i++ {
				if crossUp(imb, thr, i) {
					signals = append(signals, buyAt(bars[i]))
				} else if crossDown(imb, -thr, i) {
					signals = append(signals, sellAt(bars[i]))
				}
			}
			return &Result{
				Signals:    signals,
				Indicators: map[string][]float64{"imbalance": imb},
				Output:     nil,
			}, nil
		})
}
