// Package engine orchestrates strategy execution: the synchronous run
// path, the backtest path and the step-event stream used for animated
// discovery. It owns no transport concerns; handlers adapt its records
// and errors onto HTTP.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"quantdesk/internal/backtest"
	"quantdesk/internal/logger"
	"quantdesk/internal/metric"
	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
	"quantdesk/internal/strategy"
)

// Disclaimer is stamped on every outward record that carries performance
// numbers. Fixed text, never generated.
const Disclaimer = "This analysis is algorithmically generated and does not constitute financial advice. " +
	"Past performance is not indicative of future results. All trading involves risk."

// BarProvider supplies historical bars for a ticker. Implementations
// must be safe for concurrent use.
type BarProvider interface {
	History(ctx context.Context, ticker, period, interval string) ([]model.Bar, error)
}

// Engine wires the strategy registry to a market-data source.
type Engine struct {
	reg  *strategy.Registry
	bars BarProvider
	log  *slog.Logger

	// StepDelay paces stream events for UI animation. Zero means no
	// pacing.
	StepDelay time.Duration
}

func New(reg *strategy.Registry, bars BarProvider, log *slog.Logger) *Engine {
	return &Engine{reg: reg, bars: bars, log: log}
}

// ensureTrace backfills a trace ID for callers that did not arrive
// through the HTTP layer, such as the backtest CLI.
func ensureTrace(ctx context.Context, ticker string) context.Context {
	if logger.TraceID(ctx) != "" {
		return ctx
	}
	return logger.WithTraceID(ctx, logger.GenerateTraceID(ticker, time.Now()))
}

// RunRequest is one strategy execution request.
type RunRequest struct {
	Ticker   string             `json:"ticker"`
	Strategy string             `json:"strategy"`
	Period   string             `json:"period"`
	Interval string             `json:"interval"`
	Params   map[string]float64 `json:"params"`
}

func (r *RunRequest) normalize() {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if r.Period == "" {
		r.Period = "1y"
	}
	if r.Interval == "" {
		r.Interval = "1d"
	}
}

// RunRecord is the outward result of a synchronous run.
type RunRecord struct {
	Ticker        string                       `json:"ticker"`
	Strategy      string                       `json:"strategy"`
	Signals       []model.Signal               `json:"signals"`
	Metrics       model.Metrics                `json:"metrics"`
	IndicatorData map[string][]sanitize.Float  `json:"indicator_data"`
	OutputType    model.OutputKind             `json:"output_type"`
	Output        model.StrategyOutput         `json:"output"`
	Disclaimer    string                       `json:"disclaimer"`
}

// BacktestRequest extends a run with simulation sizing.
type BacktestRequest struct {
	RunRequest
	InitialCapital float64 `json:"initial_capital"`
	SizeFraction   float64 `json:"size_fraction"`
}

// BacktestRecord is the outward result of a backtest.
type BacktestRecord struct {
	Ticker     string `json:"ticker"`
	Strategy   string `json:"strategy"`
	*model.BacktestResult
	Disclaimer string `json:"disclaimer"`
}

// prepare resolves the strategy, validates parameters and fetches bars.
func (e *Engine) prepare(ctx context.Context, req *RunRequest) (*strategy.Strategy, strategy.Params, []model.Bar, error) {
	req.normalize()
	s, err := e.reg.Get(req.Strategy)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := s.ResolveParams(req.Params)
	if err != nil {
		return nil, nil, nil, err
	}
	bars, err := e.bars.History(ctx, req.Ticker, req.Period, req.Interval)
	if err != nil {
		var ee *model.EngineError
		if errors.As(err, &ee) {
			return nil, nil, nil, err
		}
		return nil, nil, nil, model.ErrDataUnavailable("fetching bars for "+req.Ticker, err)
	}
	if len(bars) == 0 {
		return nil, nil, nil, model.ErrDataUnavailable("no bars returned for "+req.Ticker, nil)
	}
	return s, p, bars, nil
}

// Run executes the synchronous path: resolve, fetch, compute, score,
// sanitize, stamp.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunRecord, error) {
	s, p, bars, err := e.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	ctx = ensureTrace(ctx, req.Ticker)
	res, err := s.Run(bars, p)
	if err != nil {
		return nil, model.ErrInternal("running "+req.Strategy, err)
	}
	m := metric.Compute(bars, res.Signals, req.Interval)
	e.log.InfoContext(ctx, "strategy run", append([]any{
		"strategy", req.Strategy, "ticker", req.Ticker,
		"bars", len(bars), "signals", len(res.Signals),
	}, logger.LogWithTrace(ctx)...)...)
	return &RunRecord{
		Ticker:        req.Ticker,
		Strategy:      req.Strategy,
		Signals:       res.Signals,
		Metrics:       m,
		IndicatorData: sanitize.Channels(res.Indicators),
		OutputType:    res.Output.Kind(),
		Output:        res.Output,
		Disclaimer:    Disclaimer,
	}, nil
}

// Backtest runs the strategy and simulates it with the capital walk.
func (e *Engine) Backtest(ctx context.Context, req BacktestRequest) (*BacktestRecord, error) {
	s, p, bars, err := e.prepare(ctx, &req.RunRequest)
	if err != nil {
		return nil, err
	}
	ctx = ensureTrace(ctx, req.Ticker)
	res, err := s.Run(bars, p)
	if err != nil {
		return nil, model.ErrInternal("running "+req.Strategy, err)
	}
	sim := backtest.Run(bars, res.Signals, backtest.Config{
		InitialCapital: req.InitialCapital,
		SizeFraction:   req.SizeFraction,
		Interval:       req.Interval,
	})
	e.log.InfoContext(ctx, "backtest run", append([]any{
		"strategy", req.Strategy, "ticker", req.Ticker,
		"trades", len(sim.TradeLog), "final_value", float64(sim.FinalValue),
	}, logger.LogWithTrace(ctx)...)...)
	return &BacktestRecord{
		Ticker:         req.Ticker,
		Strategy:       req.Strategy,
		BacktestResult: sim,
		Disclaimer:     Disclaimer,
	}, nil
}
