package engine

import (
	"fmt"
	"math"
)

// scripts maps strategy keys to their custom step narrations. Keys not
// listed here stream through the generic fallback.
var scripts = map[string]func(*stepContext) script{
	"ma_crossover":        scriptMACrossover,
	"ema_strategy":        scriptEMA,
	"macd_signal":         scriptMACD,
	"rsi_strategy":        scriptRSI,
	"stochastic":          scriptStochastic,
	"bollinger_reversion": scriptBollinger,
	"atr_breakout":        scriptATR,
	"kalman_filter":       scriptKalman,
	"lstm_proxy":          scriptLSTM,
	"gbm_proxy":           scriptGBM,
}

func scriptMACrossover(sc *stepContext) script {
	fp, sp := sc.params.Int("fast_period"), sc.params.Int("slow_period")
	return script{
		primary: stage{
			title:    fmt.Sprintf("Computing Fast SMA(%d)", fp),
			detail:   fmt.Sprintf("Smoothing price with %d-period simple moving average", fp),
			channels: []string{"fast_sma"},
		},
		secondary: stage{
			title:    fmt.Sprintf("Computing Slow SMA(%d)", sp),
			detail:   fmt.Sprintf("Establishing trend baseline with %d-period SMA", sp),
			channels: []string{"slow_sma"},
		},
		scanTitle: "Scanning Crossover Points",
	}
}

func scriptEMA(sc *stepContext) script {
	fp, sp := sc.params.Int("fast_period"), sc.params.Int("slow_period")
	return script{
		primary: stage{
			title:    fmt.Sprintf("Computing Fast EMA(%d)", fp),
			detail:   fmt.Sprintf("Exponential weighting with span=%d", fp),
			channels: []string{"fast_ema"},
		},
		secondary: stage{
			title:    fmt.Sprintf("Computing Slow EMA(%d)", sp),
			detail:   fmt.Sprintf("Trend baseline with span=%d", sp),
			channels: []string{"slow_ema"},
		},
		scanTitle: "Scanning Crossover Points",
	}
}

func scriptMACD(sc *stepContext) script {
	f, s := sc.params.Int("fast"), sc.params.Int("slow")
	sig := sc.params.Int("signal")
	lo, hi := channelRange(sc.res.Indicators["macd"])
	return script{
		primary: stage{
			title:    fmt.Sprintf("Computing MACD Line (EMA%d-EMA%d)", f, s),
			detail:   fmt.Sprintf("MACD range: [%s, %s]", fmtFloat(lo, "%.2f"), fmtFloat(hi, "%.2f")),
			channels: []string{"macd"},
		},
		secondary: stage{
			title:    fmt.Sprintf("Computing Signal Line (EMA%d of MACD)", sig),
			detail:   "Trigger line for crossover detection",
			channels: []string{"signal", "histogram"},
		},
		scanTitle: "Scanning MACD Crossovers",
	}
}

func scriptRSI(sc *stepContext) script {
	period := sc.params.Int("period")
	cur := lastFinite(sc.res.Indicators["rsi"])
	lo, hi := channelRange(sc.res.Indicators["rsi"])
	return script{
		primary: stage{
			title: fmt.Sprintf("Computing RSI(%d)", period),
			detail: fmt.Sprintf("Current RSI: %s | Range: [%s, %s]",
				fmtFloat(cur, "%.1f"), fmtFloat(lo, "%.1f"), fmtFloat(hi, "%.1f")),
			channels: []string{"rsi"},
		},
		secondary: stage{
			title: "Computing Threshold Bands",
			detail: fmt.Sprintf("Oversold below %.0f, overbought above %.0f",
				sc.params.Float("oversold"), sc.params.Float("overbought")),
		},
		scanTitle: "Scanning Oversold/Overbought Zones",
	}
}

func scriptStochastic(sc *stepContext) script {
	kp, dp := sc.params.Int("k_period"), sc.params.Int("d_period")
	k := lastFinite(sc.res.Indicators["stoch_k"])
	d := lastFinite(sc.res.Indicators["stoch_d"])
	return script{
		primary: stage{
			title:    fmt.Sprintf("Computing %%K(%d)", kp),
			detail:   fmt.Sprintf("Current %%K=%s", fmtFloat(k, "%.1f")),
			channels: []string{"stoch_k"},
		},
		secondary: stage{
			title:    fmt.Sprintf("Computing %%D(%d)", dp),
			detail:   fmt.Sprintf("Current %%D=%s", fmtFloat(d, "%.1f")),
			channels: []string{"stoch_d"},
		},
		scanTitle: "Scanning K/D Crossovers",
	}
}

func scriptBollinger(sc *stepContext) script {
	period := sc.params.Int("period")
	std := sc.params.Float("std_dev")
	upper := lastFinite(sc.res.Indicators["bb_upper"])
	lower := lastFinite(sc.res.Indicators["bb_lower"])
	return script{
		primary: stage{
			title:    fmt.Sprintf("Computing Middle Band SMA(%d)", period),
			detail:   fmt.Sprintf("Rolling %d-period mean of closes", period),
			channels: []string{"bb_middle"},
		},
		secondary: stage{
			title: fmt.Sprintf("Computing Bollinger Bands(%d, %.1fσ)", period, std),
			detail: fmt.Sprintf("Upper: %s | Lower: %s",
				fmtFloat(upper, "%.2f"), fmtFloat(lower, "%.2f")),
			channels: []string{"bb_upper", "bb_lower"},
		},
		scanTitle: "Scanning Band Touches",
	}
}

func scriptATR(sc *stepContext) script {
	period := sc.params.Int("period")
	cur := lastFinite(sc.res.Indicators["atr"])
	return script{
		primary: stage{
			title:  "Computing True Range",
			detail: "Per-bar range including gaps from the prior close",
		},
		secondary: stage{
			title:    fmt.Sprintf("Computing ATR(%d)", period),
			detail:   fmt.Sprintf("ATR: %s", fmtFloat(cur, "%.2f")),
			channels: []string{"atr"},
		},
		scanTitle: "Scanning Breakout Moves",
	}
}

func scriptKalman(sc *stepContext) script {
	q := sc.params.Float("process_noise")
	r := sc.params.Float("measurement_noise")
	est := lastFinite(sc.res.Indicators["kalman"])
	return script{
		primary: stage{
			title:  "Computing Filter Initialization",
			detail: fmt.Sprintf("Process noise Q=%g, Measurement noise R=%g", q, r),
		},
		secondary: stage{
			title:    "Computing Filter Forward Pass",
			detail:   fmt.Sprintf("Final state estimate: %s", fmtFloat(est, "%.2f")),
			channels: []string{"kalman", "kalman_velocity"},
		},
		scanTitle: "Scanning Velocity Zero-Crossings",
	}
}

func scriptLSTM(sc *stepContext) script {
	lb := sc.params.Int("lookback")
	return script{
		primary: stage{
			title:  "Computing Feature Matrix",
			detail: "Normalizing RSI, MACD histogram, ROC and volume ratio",
		},
		secondary: stage{
			title:    "Computing Neural Ensemble Score",
			detail:   fmt.Sprintf("Combining 4 features with %d-period smoothing", lb),
			channels: []string{"ml_composite"},
		},
		scanTitle: "Scanning Threshold Crossings",
	}
}

func scriptGBM(sc *stepContext) script {
	lb := sc.params.Int("lookback")
	return script{
		primary: stage{
			title:  "Computing Feature Matrix",
			detail: fmt.Sprintf("Momentum horizon %d bars across 4 engineered features", lb),
		},
		secondary: stage{
			title:    "Computing Boosted Ensemble Score",
			detail:   "Weighted feature blend with short smoothing",
			channels: []string{"gbm_score"},
		},
		scanTitle: "Scanning Threshold Crossings",
	}
}

func lastFinite(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return math.NaN()
}

func channelRange(series []float64) (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}
	return lo, hi
}
