// Package metric scores a strategy run into a performance scorecard:
// trade pairing, win rate, profit factor, Sharpe, drawdown, and the
// derived risk label, confidence and verdict.
package metric

import (
	"fmt"
	"math"

	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
)

// Trade is one round trip paired from the signal stream. Forced marks a
// trailing open position settled at the last close for accounting.
type Trade struct {
	OpenTS     int64
	CloseTS    int64
	OpenPrice  float64
	ClosePrice float64
	PnL        float64
	Forced     bool
}

// PairTrades walks the signal stream in order: a BUY opens a position at
// its price, the next SELL closes it. A trailing open position is closed
// at the final bar's close and flagged.
func PairTrades(signals []model.Signal, bars []model.Bar) []Trade {
	var trades []Trade
	var open *model.Signal
	for i := range signals {
		s := signals[i]
		switch {
		case s.Side == model.SideBuy && open == nil:
			open = &signals[i]
		case s.Side == model.SideSell && open != nil:
			trades = append(trades, Trade{
				OpenTS: open.TS, CloseTS: s.TS,
				OpenPrice: open.Price, ClosePrice: s.Price,
				PnL: s.Price - open.Price,
			})
			open = nil
		}
	}
	if open != nil && len(bars) > 0 {
		last := bars[len(bars)-1]
		trades = append(trades, Trade{
			OpenTS: open.TS, CloseTS: last.TS,
			OpenPrice: open.Price, ClosePrice: last.Close,
			PnL:    last.Close - open.Price,
			Forced: true,
		})
	}
	return trades
}

// Annualization estimates bars-per-year for a sampling interval. Unknown
// intervals fall back to daily.
func Annualization(interval string) float64 {
	switch interval {
	case "1d":
		return 252
	case "1wk":
		return 52
	case "1mo":
		return 12
	case "60m", "1h":
		return 252 * 7
	case "15m":
		return 252 * 26
	case "5m":
		return 252 * 78
	case "1m":
		return 252 * 390
	default:
		return 252
	}
}

// Compute scores signals against the bar series. Per-bar strategy return
// is the close-to-close return on bars the strategy holds a long, zero
// otherwise; the drawdown path is the unit-position equity curve.
func Compute(bars []model.Bar, signals []model.Signal, interval string) model.Metrics {
	trades := PairTrades(signals, bars)
	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i] = t.PnL
	}

	returns := longReturns(bars, signals)
	sharpe := sharpeRatio(returns, Annualization(interval))
	equity := unitEquity(bars, signals)
	return score(pnls, sharpe, maxDrawdownPct(equity))
}

// FromEquity scores a simulated portfolio: Sharpe comes from per-bar
// equity returns, drawdown from the same path, trade stats from the
// closed-trade PnLs.
func FromEquity(equity []float64, pnls []float64, interval string) model.Metrics {
	var returns []float64
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		r := equity[i]/equity[i-1] - 1
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			returns = append(returns, r)
		}
	}
	sharpe := sharpeRatio(returns, Annualization(interval))
	return score(pnls, sharpe, maxDrawdownPct(equity))
}

// longReturns builds the per-bar strategy return series: the bar's
// close-to-close return while a long is held, zero while flat. A signal
// executes at its bar's close, so the position takes effect on the next
// bar's return.
func longReturns(bars []model.Bar, signals []model.Signal) []float64 {
	if len(bars) < 2 {
		return nil
	}
	sigAt := make(map[int64]model.Side, len(signals))
	for _, s := range signals {
		sigAt[s.TS] = s.Side
	}
	returns := make([]float64, 0, len(bars)-1)
	long := false
	for i, b := range bars {
		if i > 0 {
			r := 0.0
			if long && bars[i-1].Close != 0 {
				r = b.Close/bars[i-1].Close - 1
			}
			if !math.IsNaN(r) && !math.IsInf(r, 0) {
				returns = append(returns, r)
			}
		}
		if side, ok := sigAt[b.TS]; ok {
			long = side == model.SideBuy
		}
	}
	return returns
}

// unitEquity marks a single-unit position to market on every bar, based
// at the first close.
func unitEquity(bars []model.Bar, signals []model.Signal) []float64 {
	if len(bars) == 0 {
		return nil
	}
	sigAt := make(map[int64]model.Side, len(signals))
	for _, s := range signals {
		sigAt[s.TS] = s.Side
	}
	base := bars[0].Close
	realized := 0.0
	entry := 0.0
	long := false
	equity := make([]float64, len(bars))
	for i, b := range bars {
		if side, ok := sigAt[b.TS]; ok {
			if side == model.SideBuy && !long {
				long, entry = true, b.Close
			} else if side == model.SideSell && long {
				realized += b.Close - entry
				long, entry = false, 0
			}
		}
		equity[i] = base + realized
		if long {
			equity[i] += b.Close - entry
		}
	}
	return equity
}

func sharpeRatio(returns []float64, annualization float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return math.NaN()
	}
	return mean / math.Sqrt(variance) * math.Sqrt(annualization)
}

func maxDrawdownPct(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// score assembles the scorecard from closed-trade PnLs, a precomputed
// Sharpe and the drawdown. Zero-PnL trades count toward the total but
// are neither wins nor losses.
func score(pnls []float64, sharpe, maxDDPct float64) model.Metrics {
	if len(pnls) == 0 {
		return emptyMetrics()
	}

	var wins, losses []float64
	for _, p := range pnls {
		switch {
		case p > 0:
			wins = append(wins, p)
		case p < 0:
			losses = append(losses, p)
		}
	}

	winRate := math.NaN()
	if len(wins)+len(losses) > 0 {
		winRate = float64(len(wins)) / float64(len(wins)+len(losses))
	}

	avgWin, avgLoss := math.NaN(), math.NaN()
	sumWins, sumLosses := 0.0, 0.0
	for _, w := range wins {
		sumWins += w
	}
	for _, l := range losses {
		sumLosses += l
	}
	if len(wins) > 0 {
		avgWin = sumWins / float64(len(wins))
	}
	if len(losses) > 0 {
		avgLoss = math.Abs(sumLosses / float64(len(losses)))
	}

	// Profit factor: with no losses it is undefined when there are no
	// wins, and capped at 999 otherwise.
	profitFactor := math.NaN()
	switch {
	case len(losses) > 0:
		profitFactor = sumWins / math.Abs(sumLosses)
		if profitFactor > 999 {
			profitFactor = 999
		}
	case len(wins) > 0:
		profitFactor = 999
	}

	confidence := confidenceScore(len(pnls), winRate, profitFactor)

	risk := model.RiskHigh
	switch {
	case maxDDPct <= 5 && len(pnls) >= 10:
		risk = model.RiskLow
	case maxDDPct <= 15:
		risk = model.RiskModerate
	}

	position := math.NaN()
	if !math.IsNaN(winRate) {
		position = math.Max(2, math.Min(25, float64(int(winRate*30))))
	}

	return model.Metrics{
		Sharpe:               sanitize.Value(sharpe),
		MaxDrawdownPct:       sanitize.Value(maxDDPct),
		WinRate:              sanitize.Value(winRate),
		TotalTrades:          len(pnls),
		ProfitFactor:         sanitize.Value(profitFactor),
		AvgWin:               sanitize.Value(avgWin),
		AvgLoss:              sanitize.Value(avgLoss),
		RiskLabel:            risk,
		Confidence:           sanitize.Value(confidence),
		Verdict:              verdict(sharpe, confidence, len(pnls), winRate),
		SuggestedPositionPct: sanitize.Value(position),
	}
}

// confidenceScore blends sample size, win-rate edge and profit-factor
// edge into [0,1]. Undefined components contribute zero.
func confidenceScore(trades int, winRate, profitFactor float64) float64 {
	c := 0.4 * math.Min(1, float64(trades)/10)
	if !math.IsNaN(winRate) {
		c += 0.4 * math.Max(0, math.Min(1, (winRate-0.5)*2))
	}
	if !math.IsNaN(profitFactor) {
		c += 0.2 * math.Min(1, math.Max(0, profitFactor-1)/2)
	}
	return c
}

func verdict(sharpe, confidence float64, trades int, winRate float64) string {
	edge := "unfavorable"
	switch {
	case sharpe > 1:
		edge = "favorable"
	case sharpe > 0:
		edge = "marginal"
	}
	conf := "low"
	switch {
	case confidence >= 0.7:
		conf = "high"
	case confidence >= 0.4:
		conf = "moderate"
	}
	wr := "n/a"
	if !math.IsNaN(winRate) {
		wr = fmt.Sprintf("%.0f%%", winRate*100)
	}
	return fmt.Sprintf("Risk-adjusted return %s. %d round-trip trades with %s win rate (%s confidence).",
		edge, trades, wr, conf)
}

func emptyMetrics() model.Metrics {
	hole := sanitize.Value(math.NaN())
	return model.Metrics{
		Sharpe: hole, MaxDrawdownPct: sanitize.Value(0), WinRate: hole,
		TotalTrades: 0, ProfitFactor: hole, AvgWin: hole, AvgLoss: hole,
		RiskLabel: model.RiskLow, Confidence: sanitize.Value(0),
		Verdict:              "Insufficient signals for analysis",
		SuggestedPositionPct: sanitize.Value(0),
	}
}
