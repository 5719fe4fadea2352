package marketdata

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdesk/internal/model"
)

type flakyProvider struct {
	err   error
	calls int
}

func (f *flakyProvider) History(ctx context.Context, ticker, period, interval string) ([]model.Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []model.Bar{{TS: 1700000000, Close: 100}}, nil
}

func (f *flakyProvider) Quote(ctx context.Context, ticker string) (*model.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.Quote{Ticker: ticker, Price: 100}, nil
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := NewBreaker(&flakyProvider{}, 3, 100*time.Millisecond, discard())
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	up := &flakyProvider{err: errors.New("timeout")}
	b := NewBreaker(up, 3, 100*time.Millisecond, discard())

	for i := 0; i < 3; i++ {
		_, err := b.History(context.Background(), "AAPL", "1y", "1d")
		require.Error(t, err)
	}
	require.Equal(t, BreakerOpen, b.State())

	// Open circuit rejects without touching the upstream.
	before := up.calls
	_, err := b.Quote(context.Background(), "AAPL")
	assert.Equal(t, before, up.calls)

	var ee *model.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, model.KindDataUnavailable, ee.Kind)
	assert.True(t, errors.Is(err, ErrUpstreamOpen))
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	up := &flakyProvider{err: errors.New("timeout")}
	b := NewBreaker(up, 2, 50*time.Millisecond, discard())

	for i := 0; i < 2; i++ {
		b.History(context.Background(), "AAPL", "1y", "1d")
	}
	require.Equal(t, BreakerOpen, b.State())

	time.Sleep(60 * time.Millisecond)
	up.err = nil

	bars, err := b.History(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	up := &flakyProvider{err: errors.New("timeout")}
	b := NewBreaker(up, 2, 50*time.Millisecond, discard())

	for i := 0; i < 2; i++ {
		b.History(context.Background(), "AAPL", "1y", "1d")
	}
	time.Sleep(60 * time.Millisecond)

	_, err := b.History(context.Background(), "AAPL", "1y", "1d")
	require.Error(t, err)
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	up := &flakyProvider{err: errors.New("timeout")}
	b := NewBreaker(up, 3, 100*time.Millisecond, discard())

	b.History(context.Background(), "AAPL", "1y", "1d")
	b.History(context.Background(), "AAPL", "1y", "1d")
	up.err = nil
	b.History(context.Background(), "AAPL", "1y", "1d")
	up.err = errors.New("timeout")
	b.History(context.Background(), "AAPL", "1y", "1d")
	b.History(context.Background(), "AAPL", "1y", "1d")

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_UnknownTickerDoesNotTrip(t *testing.T) {
	up := &flakyProvider{err: fmt.Errorf("%w: NOPE", ErrUnknownTicker)}
	b := NewBreaker(up, 2, 100*time.Millisecond, discard())

	for i := 0; i < 5; i++ {
		_, err := b.History(context.Background(), "NOPE", "1y", "1d")
		require.Error(t, err)
	}
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_CanceledContextDoesNotTrip(t *testing.T) {
	up := &flakyProvider{err: context.Canceled}
	b := NewBreaker(up, 2, 100*time.Millisecond, discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := b.History(ctx, "AAPL", "1y", "1d")
		require.Error(t, err)
	}
	assert.Equal(t, BreakerClosed, b.State())
}
