package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"quantdesk/internal/metric"
	"quantdesk/internal/model"
	"quantdesk/internal/sanitize"
	"quantdesk/internal/strategy"
)

// Event is one entry in a stream of step events. The terminal success
// event carries Final plus the full result payload.
type Event struct {
	Step     int    `json:"step"`
	Total    int    `json:"total"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Progress int    `json:"progress"`

	Indicator map[string][]sanitize.Float `json:"indicator,omitempty"`
	Signals   []model.Signal              `json:"signals,omitempty"`

	Final         bool                        `json:"final,omitempty"`
	Metrics       *model.Metrics              `json:"metrics,omitempty"`
	IndicatorData map[string][]sanitize.Float `json:"indicator_data,omitempty"`
	OutputType    model.OutputKind            `json:"output_type,omitempty"`
	Output        model.StrategyOutput        `json:"output,omitempty"`
}

// Emitter delivers one event to the client. A non-nil error aborts the
// stream.
type Emitter func(Event) error

// stepContext carries the completed computation that the step scripts
// narrate.
type stepContext struct {
	bars    []model.Bar
	params  strategy.Params
	res     *strategy.Result
	metrics model.Metrics
}

// stage describes one "Computing ..." step of a custom script: a title,
// a narration line and the indicator channels it reveals.
type stage struct {
	title    string
	detail   string
	channels []string
}

// script is the strategy-specific part of the canonical six-step
// sequence: two computing stages and a scanning title. Everything else
// is shared.
type script struct {
	primary   stage
	secondary stage
	scanTitle string
}

// Stream emits the step-event sequence for one request: six canonical
// steps for strategies with a custom script, four for the generic
// fallback. Exactly one terminal event is emitted on success; on error
// the function returns without a terminal event and the transport emits
// the error record. Cancellation is checked before every emit.
func (e *Engine) Stream(ctx context.Context, req RunRequest, emit Emitter) error {
	s, p, bars, err := e.prepare(ctx, &req)
	if err != nil {
		return err
	}
	res, err := s.Run(bars, p)
	if err != nil {
		return model.ErrInternal("running "+req.Strategy, err)
	}
	sc := &stepContext{bars: bars, params: p, res: res, metrics: metric.Compute(bars, res.Signals, req.Interval)}

	send := func(ev Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(ev); err != nil {
			return err
		}
		return e.pace(ctx)
	}

	build, ok := scripts[req.Strategy]
	if !ok {
		return e.streamGeneric(sc, send)
	}
	sp := build(sc)

	steps := []Event{
		{Step: 1, Total: 6, Title: "Loading Market Data",
			Detail: fmt.Sprintf("%d bars loaded for analysis", len(bars)), Progress: 10},
		{Step: 2, Total: 6, Title: sp.primary.title, Detail: sp.primary.detail,
			Progress: 30, Indicator: pickChannels(res.Indicators, sp.primary.channels)},
		{Step: 3, Total: 6, Title: sp.secondary.title, Detail: sp.secondary.detail,
			Progress: 50, Indicator: pickChannels(res.Indicators, sp.secondary.channels)},
		{Step: 4, Total: 6, Title: sp.scanTitle,
			Detail: signalSummary(res.Signals), Progress: 70, Signals: res.Signals},
		{Step: 5, Total: 6, Title: "Computing Risk Metrics",
			Detail: metricSummary(sc.metrics), Progress: 90},
	}
	for _, ev := range steps {
		if err := send(ev); err != nil {
			return err
		}
	}
	return send(e.finalEvent(sc, 6, 6))
}

func (e *Engine) streamGeneric(sc *stepContext, send func(Event) error) error {
	steps := []Event{
		{Step: 1, Total: 4, Title: "Loading Market Data",
			Detail: fmt.Sprintf("%d bars loaded for analysis", len(sc.bars)), Progress: 10},
		{Step: 2, Total: 4, Title: "Applying Strategy",
			Detail: signalSummary(sc.res.Signals), Progress: 50, Signals: sc.res.Signals},
		{Step: 3, Total: 4, Title: "Computing Risk Metrics",
			Detail: metricSummary(sc.metrics), Progress: 90},
	}
	for _, ev := range steps {
		if err := send(ev); err != nil {
			return err
		}
	}
	return send(e.finalEvent(sc, 4, 4))
}

func (e *Engine) finalEvent(sc *stepContext, step, total int) Event {
	m := sc.metrics
	return Event{
		Step: step, Total: total, Title: "Analysis Complete",
		Detail:        fmt.Sprintf("%d signals generated.", len(sc.res.Signals)),
		Progress:      100,
		Final:         true,
		Signals:       sc.res.Signals,
		Metrics:       &m,
		IndicatorData: sanitize.Channels(sc.res.Indicators),
		OutputType:    sc.res.Output.Kind(),
		Output:        sc.res.Output,
	}
}

func (e *Engine) pace(ctx context.Context) error {
	if e.StepDelay <= 0 {
		return nil
	}
	t := time.NewTimer(e.StepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func pickChannels(all map[string][]float64, names []string) map[string][]sanitize.Float {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string][]sanitize.Float, len(names))
	for _, name := range names {
		if ch, ok := all[name]; ok {
			out[name] = sanitize.Channel(ch)
		}
	}
	return out
}

func signalSummary(signals []model.Signal) string {
	buys, sells := 0, 0
	for _, s := range signals {
		if s.Side == model.SideBuy {
			buys++
		} else {
			sells++
		}
	}
	return fmt.Sprintf("Detected %d bullish and %d bearish signals", buys, sells)
}

func metricSummary(m model.Metrics) string {
	return fmt.Sprintf("Sharpe %s | Win Rate %s | Max DD %s",
		fmtFloat(float64(m.Sharpe), "%.3f"),
		fmtPct(float64(m.WinRate)),
		fmtFloat(float64(m.MaxDrawdownPct), "%.1f%%"))
}

func fmtFloat(v float64, format string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf(format, v)
}

func fmtPct(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", v*100)
}
