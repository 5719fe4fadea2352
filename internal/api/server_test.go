package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdesk/internal/engine"
	"quantdesk/internal/insight"
	"quantdesk/internal/marketdata"
	"quantdesk/internal/model"
	"quantdesk/internal/strategy"
)

type fakeProvider struct {
	bars []model.Bar
	err  error
}

func (f *fakeProvider) History(ctx context.Context, ticker, period, interval string) ([]model.Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

func (f *fakeProvider) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	return &model.Quote{Ticker: ticker, Price: 101, PreviousClose: 100, Volume: 1000}, nil
}

type fakeInsight struct {
	text string
	err  error
}

func (f *fakeInsight) Insight(ctx context.Context, req insight.Request) (string, error) {
	return f.text, f.err
}

func scenarioBars() []model.Bar {
	closes := []float64{10, 11, 12, 13, 14, 10, 9, 8, 7, 6, 10, 12, 14, 16, 18}
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			TS: int64(1700000000 + i*86400), Open: c, High: c * 1.01, Low: c * 0.99,
			Close: c, Volume: 1000,
		}
	}
	return bars
}

func testServer(t *testing.T, provider *fakeProvider, ins insight.Provider, cfg Config) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := strategy.NewRegistry()
	e := engine.New(reg, provider, log)
	srv := NewServer(e, reg, provider, ins, nil, nil, log, cfg)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStrategies_ListsCatalog(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})

	resp, err := http.Get(ts.URL + "/quant/strategies")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var descs []strategy.Descriptor
	decodeBody(t, resp, &descs)
	assert.Len(t, descs, 20)
}

func TestRun_OK(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})

	resp := postJSON(t, ts.URL+"/quant/run", map[string]any{
		"ticker": "aapl", "strategy": "ma_crossover",
		"params": map[string]float64{"fast_period": 3, "slow_period": 5},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec map[string]any
	decodeBody(t, resp, &rec)
	assert.Equal(t, "AAPL", rec["ticker"])
	assert.NotEmpty(t, rec["disclaimer"])
	assert.NotNil(t, rec["metrics"])
}

func TestRun_UnknownStrategyIs400(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})

	resp := postJSON(t, ts.URL+"/quant/run", map[string]any{"ticker": "AAPL", "strategy": "ghost"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	decodeBody(t, resp, &body)
	assert.Equal(t, string(model.KindUnknownStrategy), body.Kind)
}

func TestRun_InvalidParamsIs400(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})

	resp := postJSON(t, ts.URL+"/quant/run", map[string]any{
		"ticker": "AAPL", "strategy": "ma_crossover",
		"params": map[string]float64{"warp_factor": 9},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRun_UnknownTickerIs404(t *testing.T) {
	cause := fmt.Errorf("%w: NOPE", marketdata.ErrUnknownTicker)
	provider := &fakeProvider{err: model.ErrDataUnavailable("ticker NOPE not found", cause)}
	ts := testServer(t, provider, nil, Config{})

	resp := postJSON(t, ts.URL+"/quant/run", map[string]any{"ticker": "NOPE", "strategy": "ma_crossover"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRun_ProviderDownIs502(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	ts := testServer(t, provider, nil, Config{})

	resp := postJSON(t, ts.URL+"/quant/run", map[string]any{"ticker": "AAPL", "strategy": "ma_crossover"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body errorBody
	decodeBody(t, resp, &body)
	assert.True(t, body.Retryable)
}

func TestRun_MissingTickerIs400(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})
	resp := postJSON(t, ts.URL+"/quant/run", map[string]any{"strategy": "ma_crossover"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBacktest_OK(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})

	resp := postJSON(t, ts.URL+"/quant/backtest", map[string]any{
		"ticker": "AAPL", "strategy": "ma_crossover",
		"params":          map[string]float64{"fast_period": 3, "slow_period": 5},
		"initial_capital": 10000.0, "size_fraction": 1.0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec map[string]any
	decodeBody(t, resp, &rec)
	assert.Equal(t, 9640.0, rec["final_value"])
	assert.Len(t, rec["equity_curve"], 15)
}

func TestInsight_UnconfiguredIs502(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})
	resp := postJSON(t, ts.URL+"/quant/ai-insight", map[string]any{"ticker": "AAPL", "strategy": "ma_crossover"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestInsight_OK(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, &fakeInsight{text: "Trend regime intact."}, Config{})

	resp := postJSON(t, ts.URL+"/quant/ai-insight", map[string]any{"ticker": "AAPL", "strategy": "ma_crossover"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body insightResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "Trend regime intact.", body.Insight)
	assert.Equal(t, engine.Disclaimer, body.Disclaimer)
}

func TestInsight_BackendFailureIs502(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, &fakeInsight{err: errors.New("quota")}, Config{})
	resp := postJSON(t, ts.URL+"/quant/ai-insight", map[string]any{"ticker": "AAPL", "strategy": "ma_crossover"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit_Returns429(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{RateRPS: 1, RateBurst: 2})

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/quant/strategies")
		require.NoError(t, err)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited, "burst of requests should trip the limiter")
}

type sseEvent struct {
	Name string
	Data string
}

func readSSE(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var events []sseEvent
	for _, block := range strings.Split(string(raw), "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			if after, ok := strings.CutPrefix(line, "event: "); ok {
				ev.Name = after
			}
			if after, ok := strings.CutPrefix(line, "data: "); ok {
				ev.Data = after
			}
		}
		events = append(events, ev)
	}
	return events
}

func TestStreamRun_StepAndCompleteEvents(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})

	resp, err := http.Get(ts.URL + "/quant/stream/run?ticker=AAPL&strategy=ma_crossover")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readSSE(t, resp.Body)
	require.Len(t, events, 6)
	for _, ev := range events[:5] {
		assert.Equal(t, "step", ev.Name)
	}
	assert.Equal(t, "complete", events[5].Name)

	var final engine.Event
	require.NoError(t, json.Unmarshal([]byte(events[5].Data), &final))
	assert.True(t, final.Final)
	assert.Equal(t, 100, final.Progress)
}

func TestStreamRun_UnknownStrategyEmitsErrorEvent(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})

	resp, err := http.Get(ts.URL + "/quant/stream/run?ticker=AAPL&strategy=ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readSSE(t, resp.Body)
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Name)
	assert.Contains(t, events[0].Data, "ghost")
}

func TestStreamRun_BadParamsJSONIs400(t *testing.T) {
	ts := testServer(t, &fakeProvider{bars: scenarioBars()}, nil, Config{})
	resp, err := http.Get(ts.URL + "/quant/stream/run?ticker=AAPL&strategy=ma_crossover&params=notjson")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
