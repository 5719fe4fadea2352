package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"quantdesk/internal/model"
)

const (
	// DefaultYahooBase is the public chart API host.
	DefaultYahooBase = "https://query1.finance.yahoo.com"

	// Yahoo rejects requests without a browser-ish User-Agent.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) quantdesk/1.0"
)

// YahooClient fetches bars and quotes from the Yahoo v8 chart API.
type YahooClient struct {
	base string
	http *http.Client
	log  *slog.Logger
}

// NewYahoo builds a client against base (DefaultYahooBase when empty).
func NewYahoo(base string, timeout time.Duration, log *slog.Logger) *YahooClient {
	if base == "" {
		base = DefaultYahooBase
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooClient{
		base: base,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// chartResponse mirrors the subset of the v8 chart payload we consume.
// Price fields arrive as nullable arrays, hence the pointer slices.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	RegularMarketHigh  float64 `json:"regularMarketDayHigh"`
	RegularMarketLow   float64 `json:"regularMarketDayLow"`
	RegularMarketVol   int64   `json:"regularMarketVolume"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
}

type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// History fetches the bar series for ticker over period at interval.
func (c *YahooClient) History(ctx context.Context, ticker, period, interval string) ([]model.Bar, error) {
	res, err := c.fetchChart(ctx, ticker, period, interval)
	if err != nil {
		return nil, err
	}

	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, model.ErrDataUnavailable(
			fmt.Sprintf("no bars returned for %s", ticker), nil)
	}
	q := res.Indicators.Quote[0]

	bars := make([]model.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		cl := deref(q.Close, i)
		if cl == nil {
			// Untraded interval; Yahoo leaves the row null.
			continue
		}
		bars = append(bars, model.Bar{
			TS:     ts,
			Open:   orZero(deref(q.Open, i), *cl),
			High:   orZero(deref(q.High, i), *cl),
			Low:    orZero(deref(q.Low, i), *cl),
			Close:  *cl,
			Volume: orZero(deref(q.Volume, i), 0),
		})
	}
	if len(bars) == 0 {
		return nil, model.ErrDataUnavailable(
			fmt.Sprintf("no tradable bars for %s", ticker), nil)
	}
	return bars, nil
}

// Quote fetches a point-in-time snapshot from the chart meta block.
func (c *YahooClient) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	res, err := c.fetchChart(ctx, ticker, "1d", "1m")
	if err != nil {
		return nil, err
	}
	m := res.Meta
	if m.RegularMarketPrice == 0 && m.RegularMarketTime == 0 {
		return nil, model.ErrDataUnavailable(
			fmt.Sprintf("no quote for %s", ticker), nil)
	}
	return &model.Quote{
		Ticker:        ticker,
		Price:         m.RegularMarketPrice,
		PreviousClose: m.ChartPreviousClose,
		DayHigh:       m.RegularMarketHigh,
		DayLow:        m.RegularMarketLow,
		Volume:        m.RegularMarketVol,
		TS:            m.RegularMarketTime,
	}, nil
}

func (c *YahooClient) fetchChart(ctx context.Context, ticker, period, interval string) (*chartResult, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.base, url.PathEscape(ticker), url.QueryEscape(period), url.QueryEscape(interval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, model.ErrDataUnavailable("building chart request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, model.ErrDataUnavailable("chart request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, model.ErrDataUnavailable("reading chart response", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, model.ErrDataUnavailable(
			fmt.Sprintf("ticker %s not found", ticker),
			fmt.Errorf("%w: %s", ErrUnknownTicker, ticker))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, model.ErrDataUnavailable(
			fmt.Sprintf("chart API returned %d", resp.StatusCode), nil)
	}

	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, model.ErrDataUnavailable("decoding chart response", err)
	}
	if cr.Chart.Error != nil {
		apiErr := fmt.Errorf("%s: %s", cr.Chart.Error.Code, cr.Chart.Error.Description)
		if cr.Chart.Error.Code == "Not Found" {
			apiErr = fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
		}
		return nil, model.ErrDataUnavailable(
			fmt.Sprintf("chart API error for %s", ticker), apiErr)
	}
	if len(cr.Chart.Result) == 0 {
		return nil, model.ErrDataUnavailable(
			fmt.Sprintf("empty chart result for %s", ticker),
			fmt.Errorf("%w: %s", ErrUnknownTicker, ticker))
	}
	return &cr.Chart.Result[0], nil
}

func deref(s []*float64, i int) *float64 {
	if i >= len(s) {
		return nil
	}
	return s[i]
}

func orZero(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
