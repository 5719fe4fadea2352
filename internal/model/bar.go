// Package model defines the core data types shared across the quant engine:
// bars, quotes, signals, metrics, backtest results and the engine error
// taxonomy.
package model

import "time"

// Bar is one historical OHLCV observation. TS is UTC seconds since epoch.
// A series is ordered by strictly increasing TS; gaps are allowed and never
// interpolated.
type Bar struct {
	TS     int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Time returns the bar timestamp as a time.Time in UTC.
func (b Bar) Time() time.Time { return time.Unix(b.TS, 0).UTC() }

// Closes extracts the close channel from a bar series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume channel from a bar series.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// Quote is a point-in-time snapshot from the market data provider.
type Quote struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	DayHigh       float64 `json:"high"`
	DayLow        float64 `json:"low"`
	Volume        int64   `json:"volume"`
	TS            int64   `json:"timestamp"`
}
