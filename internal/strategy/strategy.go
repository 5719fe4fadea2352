// Package strategy holds the fixed catalog of trading strategies. Each
// strategy is a pure, deterministic rule from a bar series and validated
// parameters to signals, overlay indicator channels and a category output.
// The registry is built once at startup and read-only afterwards.
package strategy

import (
	"math"

	"quantdesk/internal/model"
)

// Category groups strategies for catalog listings.
type Category string

const (
	CategoryTrend       Category = "Trend Following"
	CategoryMomentum    Category = "Momentum"
	CategoryMeanRev     Category = "Mean Reversion"
	CategoryVolatility  Category = "Volatility"
	CategoryMicro       Category = "Market Microstructure"
	CategoryStatistical Category = "Statistical"
	CategoryML          Category = "Machine Learning"
)

// Params is a validated, merged parameter map.
type Params map[string]float64

// Int reads an integer parameter. Validation has already guaranteed the
// value is a whole number.
func (p Params) Int(name string) int { return int(p[name]) }

// Float reads a float parameter.
func (p Params) Float(name string) float64 { return p[name] }

// Descriptor is the catalog entry for one strategy. Keys are stable
// identifiers; renaming one is a breaking change.
type Descriptor struct {
	Key         string   `json:"key"`
	Name        string   `json:"display_name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Defaults    Params   `json:"default_params"`
}

// Result is the outcome of one strategy run over a bar series.
type Result struct {
	Signals    []model.Signal
	Indicators map[string][]float64
	Output     model.StrategyOutput
}

type runFunc func(bars []model.Bar, p Params) (*Result, error)

// Strategy pairs a descriptor with its parameter schema and signal rule.
type Strategy struct {
	Descriptor
	params []paramDef
	check  func(Params) error
	run    runFunc
}

// Run executes the strategy. Signals are normalized afterwards: same-side
// runs collapse to the first occurrence and duplicate timestamps are
// dropped, so BUY and SELL counts never diverge by more than one.
func (s *Strategy) Run(bars []model.Bar, p Params) (*Result, error) {
	res, err := s.run(bars, p)
	if err != nil {
		return nil, err
	}
	res.Signals = normalizeSignals(res.Signals)
	if res.Indicators == nil {
		res.Indicators = map[string][]float64{}
	}
	if res.Output == nil {
		res.Output = genericOutput(res.Signals)
	}
	return res, nil
}

func define(key, name string, cat Category, desc string, defs []paramDef, check func(Params) error, run runFunc) *Strategy {
	defaults := make(Params, len(defs))
	for _, d := range defs {
		defaults[d.name] = d.def
	}
	return &Strategy{
		Descriptor: Descriptor{Key: key, Name: name, Category: cat, Description: desc, Defaults: defaults},
		params:     defs,
		check:      check,
		run:        run,
	}
}

func genericOutput(signals []model.Signal) model.GenericOutput {
	net := 0
	for _, s := range signals {
		if s.Side == model.SideBuy {
			net++
		} else {
			net--
		}
	}
	dir := model.DirectionNeutral
	switch {
	case net > 0:
		dir = model.DirectionBullish
	case net < 0:
		dir = model.DirectionBearish
	}
	return model.GenericOutput{NetDirection: dir, TotalSignals: len(signals)}
}

func lastValid(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, true
		}
	}
	return 0, false
}
