package model

import "quantdesk/internal/sanitize"

// RiskLabel buckets a strategy's drawdown/sample-size profile.
type RiskLabel string

const (
	RiskLow      RiskLabel = "LOW"
	RiskModerate RiskLabel = "MODERATE"
	RiskHigh     RiskLabel = "HIGH"
)

// Metrics is the performance scorecard for one strategy run. Ratio fields
// are null-safe: with zero trades they serialize as JSON null.
type Metrics struct {
	Sharpe               sanitize.Float `json:"sharpe_ratio"`
	MaxDrawdownPct       sanitize.Float `json:"max_drawdown"`
	WinRate              sanitize.Float `json:"win_rate"`
	TotalTrades          int            `json:"total_trades"`
	ProfitFactor         sanitize.Float `json:"profit_factor"`
	AvgWin               sanitize.Float `json:"avg_win"`
	AvgLoss              sanitize.Float `json:"avg_loss"`
	RiskLabel            RiskLabel      `json:"risk_level"`
	Confidence           sanitize.Float `json:"confidence"`
	Verdict              string         `json:"verdict"`
	SuggestedPositionPct sanitize.Float `json:"suggested_position_pct"`
}

// TradeRecord is one entry in a backtest trade log. Closed marks forced
// liquidation of a trailing open position at the last bar.
type TradeRecord struct {
	TS            int64          `json:"time"`
	Side          string         `json:"type"`
	Price         float64        `json:"price"`
	Quantity      int64          `json:"quantity"`
	PnL           sanitize.Float `json:"pnl"`
	CumulativePnL sanitize.Float `json:"cumulative_pnl"`
	Closed        bool           `json:"forced_close,omitempty"`
}

// EquityPoint is one mark-to-market observation on the equity curve.
type EquityPoint struct {
	TS    int64          `json:"time"`
	Value sanitize.Float `json:"value"`
}

// BacktestResult is a capital-constrained simulation outcome. EquityCurve
// length always equals the input bar count.
type BacktestResult struct {
	Metrics        Metrics        `json:"metrics"`
	InitialCapital float64        `json:"initial_capital"`
	FinalValue     sanitize.Float `json:"final_value"`
	TotalReturnPct sanitize.Float `json:"total_return_pct"`
	EquityCurve    []EquityPoint  `json:"equity_curve"`
	TradeLog       []TradeRecord  `json:"trade_log"`
}
