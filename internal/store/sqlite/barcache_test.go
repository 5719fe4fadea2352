package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdesk/internal/model"
)

func testCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(Config{Path: filepath.Join(t.TempDir(), "bars.db"), TTL: ttl}, log)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleBars() []model.Bar {
	return []model.Bar{
		{TS: 1700000000, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{TS: 1700086400, Open: 100.5, High: 103, Low: 100, Close: 102, Volume: 1500},
		{TS: 1700172800, Open: 102, High: 102.5, Low: 98, Close: 99, Volume: 2000},
	}
}

func TestCache_MissOnEmpty(t *testing.T) {
	c := testCache(t, time.Minute)
	bars, ok, err := c.Get(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, bars)
}

func TestCache_PutThenGet(t *testing.T) {
	c := testCache(t, time.Minute)
	want := sampleBars()
	require.NoError(t, c.Put(context.Background(), "AAPL", "1y", "1d", want))

	got, ok, err := c.Get(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCache_WindowsAreIndependent(t *testing.T) {
	c := testCache(t, time.Minute)
	require.NoError(t, c.Put(context.Background(), "AAPL", "1y", "1d", sampleBars()))

	_, ok, err := c.Get(context.Background(), "AAPL", "6mo", "1d")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Get(context.Background(), "MSFT", "1y", "1d")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_StaleEntryIsMiss(t *testing.T) {
	c := testCache(t, time.Millisecond)
	require.NoError(t, c.Put(context.Background(), "AAPL", "1y", "1d", sampleBars()))

	time.Sleep(5 * time.Millisecond)
	_, ok, err := c.Get(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_PutReplacesWindow(t *testing.T) {
	c := testCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "AAPL", "1y", "1d", sampleBars()))

	replacement := []model.Bar{{TS: 1700259200, Open: 99, High: 100, Low: 98, Close: 99.5, Volume: 500}}
	require.NoError(t, c.Put(ctx, "AAPL", "1y", "1d", replacement))

	got, ok, err := c.Get(ctx, "AAPL", "1y", "1d")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, replacement, got)
}
