// Package backtest simulates a long-only cash walk over a bar series
// driven by strategy signals, producing an equity curve, a trade log and
// a performance scorecard.
package backtest

import (
	"math"

	"quantdesk/internal/metric"
	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
)

const (
	DefaultInitialCapital = 100000.0
	DefaultSizeFraction   = 0.95
)

// Config parameterizes one simulation. Zero values pick the defaults.
type Config struct {
	InitialCapital float64
	SizeFraction   float64
	Interval       string
}

func (c Config) withDefaults() Config {
	if c.InitialCapital <= 0 {
		c.InitialCapital = DefaultInitialCapital
	}
	if c.SizeFraction <= 0 || c.SizeFraction > 1 {
		c.SizeFraction = DefaultSizeFraction
	}
	if c.Interval == "" {
		c.Interval = "1d"
	}
	return c
}

// Run walks the bars in order. A BUY with free cash opens a whole-share
// long sized by the cash fraction; a SELL liquidates it at the close. A
// position still open after the last bar is force-closed at the final
// close and flagged in the trade log. The equity curve marks the
// portfolio to market on every bar, so its length always equals the bar
// count.
func Run(bars []model.Bar, signals []model.Signal, cfg Config) *model.BacktestResult {
	cfg = cfg.withDefaults()

	res := &model.BacktestResult{
		InitialCapital: cfg.InitialCapital,
		FinalValue:     sanitize.Value(cfg.InitialCapital),
		TotalReturnPct: sanitize.Value(0),
		EquityCurve:    make([]model.EquityPoint, len(bars)),
		TradeLog:       []model.TradeRecord{},
	}

	sigAt := make(map[int64]model.Side, len(signals))
	for _, s := range signals {
		sigAt[s.TS] = s.Side
	}

	cash := cfg.InitialCapital
	var qty int64
	entry := 0.0
	cumPnL := 0.0
	var pnls []float64
	equity := make([]float64, len(bars))

	for i, b := range bars {
		if side, ok := sigAt[b.TS]; ok {
			switch {
			case side == model.SideBuy && qty == 0 && cash > 0 && b.Close > 0:
				q := int64(cfg.SizeFraction * cash / b.Close)
				if q > 0 {
					cash -= float64(q) * b.Close
					qty, entry = q, b.Close
					res.TradeLog = append(res.TradeLog, model.TradeRecord{
						TS: b.TS, Side: string(model.SideBuy), Price: b.Close,
						Quantity: q, PnL: sanitize.Value(0),
						CumulativePnL: sanitize.Value(cumPnL),
					})
				}
			case side == model.SideSell && qty > 0:
				pnl := (b.Close - entry) * float64(qty)
				cumPnL += pnl
				cash += float64(qty) * b.Close
				pnls = append(pnls, pnl)
				res.TradeLog = append(res.TradeLog, model.TradeRecord{
					TS: b.TS, Side: string(model.SideSell), Price: b.Close,
					Quantity: qty, PnL: sanitize.Value(pnl),
					CumulativePnL: sanitize.Value(cumPnL),
				})
				qty, entry = 0, 0
			}
		}
		equity[i] = cash + float64(qty)*b.Close
		res.EquityCurve[i] = model.EquityPoint{TS: b.TS, Value: sanitize.Value(equity[i])}
	}

	if qty > 0 && len(bars) > 0 {
		last := bars[len(bars)-1]
		pnl := (last.Close - entry) * float64(qty)
		cumPnL += pnl
		cash += float64(qty) * last.Close
		pnls = append(pnls, pnl)
		res.TradeLog = append(res.TradeLog, model.TradeRecord{
			TS: last.TS, Side: string(model.SideSell), Price: last.Close,
			Quantity: qty, PnL: sanitize.Value(pnl),
			CumulativePnL: sanitize.Value(cumPnL),
			Closed:        true,
		})
	}

	res.FinalValue = sanitize.Value(cash)
	if cfg.InitialCapital != 0 {
		res.TotalReturnPct = sanitize.Value((cash - cfg.InitialCapital) / cfg.InitialCapital * 100)
	} else {
		res.TotalReturnPct = sanitize.Value(math.NaN())
	}
	res.Metrics = metric.FromEquity(equity, pnls, cfg.Interval)
	return res
}
