package marketdata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdesk/internal/model"
)

type fakeBarCache struct {
	data map[string][]model.Bar
	err  error
	puts int
}

func barKey(ticker, period, interval string) string {
	return ticker + "|" + period + "|" + interval
}

func (f *fakeBarCache) Get(ctx context.Context, ticker, period, interval string) ([]model.Bar, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	bars, ok := f.data[barKey(ticker, period, interval)]
	return bars, ok, nil
}

func (f *fakeBarCache) Put(ctx context.Context, ticker, period, interval string, bars []model.Bar) error {
	if f.err != nil {
		return f.err
	}
	f.puts++
	if f.data == nil {
		f.data = map[string][]model.Bar{}
	}
	f.data[barKey(ticker, period, interval)] = bars
	return nil
}

type fakeQuoteCache struct {
	data map[string]*model.Quote
	puts int
}

func (f *fakeQuoteCache) Get(ctx context.Context, ticker string) (*model.Quote, bool, error) {
	q, ok := f.data[ticker]
	return q, ok, nil
}

func (f *fakeQuoteCache) Put(ctx context.Context, ticker string, quote *model.Quote) error {
	f.puts++
	if f.data == nil {
		f.data = map[string]*model.Quote{}
	}
	f.data[ticker] = quote
	return nil
}

func TestService_HistoryMissFetchesAndWritesThrough(t *testing.T) {
	up := &flakyProvider{}
	cache := &fakeBarCache{}
	svc := NewService(up, cache, nil, discard())

	bars, err := svc.History(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, 1, cache.puts)

	// Second call is a hit; the upstream stays untouched.
	_, err = svc.History(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
}

func TestService_HistoryCacheErrorFallsThrough(t *testing.T) {
	up := &flakyProvider{}
	cache := &fakeBarCache{err: errors.New("disk full")}
	svc := NewService(up, cache, nil, discard())

	bars, err := svc.History(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 1, up.calls)
}

func TestService_HistoryUpstreamErrorPropagates(t *testing.T) {
	up := &flakyProvider{err: model.ErrDataUnavailable("down", nil)}
	svc := NewService(up, &fakeBarCache{}, nil, discard())

	_, err := svc.History(context.Background(), "AAPL", "1y", "1d")
	var ee *model.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, model.KindDataUnavailable, ee.Kind)
}

func TestService_QuoteMissThenHit(t *testing.T) {
	up := &flakyProvider{}
	cache := &fakeQuoteCache{}
	svc := NewService(up, nil, cache, discard())

	q, err := svc.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Ticker)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, 1, cache.puts)

	_, err = svc.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
}

func TestService_NilCachesGoStraightUpstream(t *testing.T) {
	up := &flakyProvider{}
	svc := NewService(up, nil, nil, discard())

	_, err := svc.History(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	_, err = svc.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, up.calls)
}
