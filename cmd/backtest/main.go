// cmd/backtest runs a strategy backtest from the command line against
// live market data, optionally through the SQLite bar cache, and
// prints the result as JSON.
//
// Usage:
//
//	go run ./cmd/backtest --ticker=AAPL --strategy=ma_crossover --params=fast_period=10,slow_period=30
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"quantdesk/internal/engine"
	"quantdesk/internal/marketdata"
	sqlitestore "quantdesk/internal/store/sqlite"
	"quantdesk/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	ticker := flag.String("ticker", "", "Ticker symbol to backtest (required)")
	strategyID := flag.String("strategy", "", "Strategy identifier (required; see --list)")
	period := flag.String("period", "1y", "History range, e.g. 6mo, 1y, 5y")
	interval := flag.String("interval", "1d", "Bar interval, e.g. 1d, 1h")
	paramStr := flag.String("params", "", "Strategy params: name=value,name=value")
	capital := flag.Float64("capital", 10000, "Initial capital")
	sizeFraction := flag.Float64("size", 1.0, "Fraction of equity per position")
	dbPath := flag.String("db", "", "SQLite bar cache path (empty disables caching)")
	list := flag.Bool("list", false, "List available strategies and exit")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	registry := strategy.NewRegistry()

	if *list {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(registry.List())
		return
	}
	if *ticker == "" || *strategyID == "" {
		log.Fatal("[backtest] --ticker and --strategy are required")
	}

	logDest := io.Discard
	if *verbose {
		logDest = os.Stderr
	}
	slg := slog.New(slog.NewTextHandler(logDest, nil))

	var barCache marketdata.BarCache
	if *dbPath != "" {
		cache, err := sqlitestore.New(sqlitestore.Config{Path: *dbPath}, slg)
		if err != nil {
			log.Fatalf("[backtest] sqlite open failed: %v", err)
		}
		defer cache.Close()
		barCache = cache
	}

	yahoo := marketdata.NewYahoo("", 10*time.Second, slg)
	provider := marketdata.NewService(yahoo, barCache, nil, slg)
	eng := engine.New(registry, provider, slg)

	params, err := parseParams(*paramStr)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rec, err := eng.Backtest(ctx, engine.BacktestRequest{
		RunRequest: engine.RunRequest{
			Ticker:   *ticker,
			Strategy: *strategyID,
			Period:   *period,
			Interval: *interval,
			Params:   params,
		},
		InitialCapital: *capital,
		SizeFraction:   *sizeFraction,
	})
	if err != nil {
		log.Fatalf("[backtest] run failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(rec)
}

func parseParams(s string) (map[string]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	params := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid param %q, want name=value", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid param value %q: %w", pair, err)
		}
		params[strings.TrimSpace(name)] = f
	}
	return params, nil
}
