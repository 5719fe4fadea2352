package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdesk/internal/model"
)

func collect(t *testing.T, e *Engine, req RunRequest) ([]Event, error) {
	t.Helper()
	var events []Event
	err := e.Stream(context.Background(), req, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

func TestStream_CanonicalSixSteps(t *testing.T) {
	e := testEngine(barsFromCloses(scenarioCloses()))
	events, err := collect(t, e, RunRequest{Ticker: "AAPL", Strategy: "ma_crossover"})
	require.NoError(t, err)
	require.Len(t, events, 6)

	wantPrefixes := []string{"Loading", "Computing", "Computing", "Scanning", "Computing", "Analysis Complete"}
	wantProgress := []int{10, 30, 50, 70, 90, 100}
	for i, ev := range events {
		assert.True(t, strings.HasPrefix(ev.Title, wantPrefixes[i]),
			"event %d title %q should start with %q", i, ev.Title, wantPrefixes[i])
		assert.Equal(t, wantProgress[i], ev.Progress)
		assert.Equal(t, i+1, ev.Step)
		assert.Equal(t, 6, ev.Total)
	}

	final := events[5]
	assert.True(t, final.Final)
	require.NotNil(t, final.Metrics)
	assert.NotEmpty(t, final.IndicatorData)
	assert.Equal(t, model.OutputTrend, final.OutputType)
	for i := 0; i < 5; i++ {
		assert.False(t, events[i].Final)
	}
}

func TestStream_AllCustomScriptsConform(t *testing.T) {
	e := testEngine(barsFromCloses(scenarioCloses()))
	for key := range scripts {
		t.Run(key, func(t *testing.T) {
			events, err := collect(t, e, RunRequest{Ticker: "AAPL", Strategy: key})
			require.NoError(t, err)
			require.Len(t, events, 6)
			assert.Equal(t, "Loading Market Data", events[0].Title)
			assert.Equal(t, "Analysis Complete", events[5].Title)
			assert.True(t, events[5].Final)
			prev := -1
			for _, ev := range events {
				assert.GreaterOrEqual(t, ev.Progress, prev, "progress must not decrease")
				prev = ev.Progress
			}
		})
	}
}

func TestStream_GenericFallbackFourSteps(t *testing.T) {
	e := testEngine(barsFromCloses(scenarioCloses()))
	events, err := collect(t, e, RunRequest{Ticker: "AAPL", Strategy: "donchian_breakout"})
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, "Loading Market Data", events[0].Title)
	assert.Equal(t, "Applying Strategy", events[1].Title)
	assert.Equal(t, "Computing Risk Metrics", events[2].Title)
	assert.Equal(t, "Analysis Complete", events[3].Title)
	assert.True(t, events[3].Final)
	assert.Equal(t, 100, events[3].Progress)
}

func TestStream_UnknownStrategyEmitsNothing(t *testing.T) {
	e := testEngine(barsFromCloses(scenarioCloses()))
	events, err := collect(t, e, RunRequest{Ticker: "AAPL", Strategy: "ghost"})
	assert.Empty(t, events)
	var ee *model.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, model.KindUnknownStrategy, ee.Kind)
}

func TestStream_CancellationStopsEmission(t *testing.T) {
	e := testEngine(barsFromCloses(scenarioCloses()))
	ctx, cancel := context.WithCancel(context.Background())
	var events []Event
	err := e.Stream(ctx, RunRequest{Ticker: "AAPL", Strategy: "ma_crossover"}, func(ev Event) error {
		events = append(events, ev)
		if len(events) == 2 {
			cancel()
		}
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, events, 2)
}

func TestStream_EmitterErrorAborts(t *testing.T) {
	e := testEngine(barsFromCloses(scenarioCloses()))
	sent := 0
	err := e.Stream(context.Background(), RunRequest{Ticker: "AAPL", Strategy: "ma_crossover"}, func(ev Event) error {
		sent++
		if sent == 3 {
			return context.Canceled
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 3, sent)
}
