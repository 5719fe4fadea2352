package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantdesk/internal/model"
)

func barsFromCloses(closes []float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			TS:     int64(1700000000 + i*86400),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func mustRun(t *testing.T, key string, bars []model.Bar, overrides map[string]float64) *Result {
	t.Helper()
	reg := NewRegistry()
	s, err := reg.Get(key)
	require.NoError(t, err)
	p, err := s.ResolveParams(overrides)
	require.NoError(t, err)
	res, err := s.Run(bars, p)
	require.NoError(t, err)
	return res
}

func TestRegistry_CatalogComplete(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 20, reg.Len())
	wantKeys := []string{
		"ma_crossover", "ema_strategy", "macd_signal", "supertrend", "donchian_breakout",
		"rsi_strategy", "stochastic", "roc_strategy", "cci_strategy",
		"bollinger_reversion", "zscore_reversion", "vwap_reversion",
		"atr_breakout", "keltner_channel",
		"volume_spike", "order_imbalance",
		"kalman_filter", "hmm_regime",
		"lstm_proxy", "gbm_proxy",
	}
	for _, key := range wantKeys {
		_, err := reg.Get(key)
		assert.NoError(t, err, key)
	}
	assert.Len(t, reg.List(), 20)
}

func TestRegistry_UnknownKey(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("ghost_strategy")
	require.Error(t, err)
	var ee *model.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, model.KindUnknownStrategy, ee.Kind)
}

func TestResolveParams_Validation(t *testing.T) {
	reg := NewRegistry()
	ma, err := reg.Get("ma_crossover")
	require.NoError(t, err)

	cases := []struct {
		name      string
		overrides map[string]float64
	}{
		{"unknown key", map[string]float64{"warp_factor": 9}},
		{"fractional window", map[string]float64{"fast_period": 2.5}},
		{"window below one", map[string]float64{"fast_period": 0}},
		{"slow not above fast", map[string]float64{"fast_period": 30, "slow_period": 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ma.ResolveParams(tc.overrides)
			var ee *model.EngineError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, model.KindInvalidParams, ee.Kind)
		})
	}

	p, err := ma.ResolveParams(map[string]float64{"fast_period": 5})
	require.NoError(t, err)
	assert.Equal(t, 5, p.Int("fast_period"))
	assert.Equal(t, 30, p.Int("slow_period")) // default preserved
}

func TestMACrossover_SeedScenario(t *testing.T) {
	// fast=3, slow=5 over a rise, a dip and a recovery: the fast average
	// opens above the slow one, crosses below during the dip and back
	// above on the recovery.
	closes := []float64{10, 11, 12, 13, 14, 10, 9, 8, 7, 6, 10, 12, 14, 16, 18}
	bars := barsFromCloses(closes)
	res := mustRun(t, "ma_crossover", bars, map[string]float64{"fast_period": 3, "slow_period": 5})

	require.Len(t, res.Signals, 3)
	assert.Equal(t, model.SideBuy, res.Signals[0].Side)
	assert.Equal(t, bars[4].TS, res.Signals[0].TS)
	assert.Equal(t, model.SideSell, res.Signals[1].Side)
	assert.Equal(t, bars[6].TS, res.Signals[1].TS)
	assert.Equal(t, model.SideBuy, res.Signals[2].Side)
	assert.Equal(t, bars[11].TS, res.Signals[2].TS)

	out, ok := res.Output.(model.TrendOutput)
	require.True(t, ok)
	assert.Equal(t, model.DirectionBullish, out.Direction)
}

func TestMACrossover_MonotonicSeriesSingleBuy(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	res := mustRun(t, "ma_crossover", barsFromCloses(closes), map[string]float64{"fast_period": 3, "slow_period": 5})
	require.Len(t, res.Signals, 1)
	assert.Equal(t, model.SideBuy, res.Signals[0].Side)
}

func TestAllStrategies_UniversalInvariants(t *testing.T) {
	// A series with a rally, a crash and a recovery plus a volume burst,
	// long enough for every default lookback.
	closes := make([]float64, 0, 120)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100+float64(i))
	}
	for i := 0; i < 40; i++ {
		closes = append(closes, 140-float64(i)*1.5)
	}
	for i := 0; i < 40; i++ {
		closes = append(closes, 80+float64(i)*0.8)
	}
	bars := barsFromCloses(closes)
	for i := 60; i < 70; i++ {
		bars[i].Volume = 5000
	}

	reg := NewRegistry()
	for _, desc := range reg.List() {
		t.Run(desc.Key, func(t *testing.T) {
			s, err := reg.Get(desc.Key)
			require.NoError(t, err)
			p, err := s.ResolveParams(nil)
			require.NoError(t, err)
			res, err := s.Run(bars, p)
			require.NoError(t, err)

			// Alternation: BUY and SELL counts differ by at most one.
			buys, sells := 0, 0
			var prevTS int64 = -1
			var prevSide model.Side
			tsSet := map[int64]bool{}
			for _, b := range bars {
				tsSet[b.TS] = true
			}
			for _, sig := range res.Signals {
				if sig.Side == model.SideBuy {
					buys++
				} else {
					sells++
				}
				assert.Greater(t, sig.TS, prevTS, "signals out of order")
				assert.NotEqual(t, prevSide, sig.Side, "same-side run not collapsed")
				assert.True(t, tsSet[sig.TS], "signal timestamp not in input series")
				prevTS, prevSide = sig.TS, sig.Side
			}
			diff := buys - sells
			assert.GreaterOrEqual(t, diff, -1)
			assert.LessOrEqual(t, diff, 1)

			// Indicator channels align with the bar count.
			for name, ch := range res.Indicators {
				assert.Len(t, ch, len(bars), "channel %q length", name)
			}
			require.NotNil(t, res.Output)
		})
	}
}

func TestAllStrategies_ShortSeriesProduceNoSignals(t *testing.T) {
	bars := barsFromCloses([]float64{100, 101})
	reg := NewRegistry()
	for _, desc := range reg.List() {
		s, _ := reg.Get(desc.Key)
		p, err := s.ResolveParams(nil)
		require.NoError(t, err)
		res, err := s.Run(bars, p)
		require.NoError(t, err, desc.Key)
		assert.Empty(t, res.Signals, desc.Key)
		require.NotNil(t, res.Output, desc.Key)
	}
}

func TestAllStrategies_FlatSeriesProduceNoSignals(t *testing.T) {
	bars := make([]model.Bar, 60)
	for i := range bars {
		bars[i] = model.Bar{
			TS: int64(1700000000 + i*86400), Open: 50, High: 50, Low: 50, Close: 50, Volume: 1000,
		}
	}
	reg := NewRegistry()
	for _, desc := range reg.List() {
		s, _ := reg.Get(desc.Key)
		p, err := s.ResolveParams(nil)
		require.NoError(t, err)
		res, err := s.Run(bars, p)
		require.NoError(t, err, desc.Key)
		assert.Empty(t, res.Signals, desc.Key)
	}
}

func TestRSIStrategy_BuyOnRecovery(t *testing.T) {
	// Sustained decline pushes RSI deep below 30; the sharp rebound drives
	// it back up through the threshold, which is the only BUY trigger.
	closes := make([]float64, 0, 40)
	for i := 0; i < 25; i++ {
		closes = append(closes, 200-float64(i)*4)
	}
	for i := 0; i < 10; i++ {
		closes = append(closes, 100+float64(i)*6)
	}
	res := mustRun(t, "rsi_strategy", barsFromCloses(closes), nil)
	require.NotEmpty(t, res.Signals)
	assert.Equal(t, model.SideBuy, res.Signals[0].Side)
	buys := 0
	for _, s := range res.Signals {
		if s.Side == model.SideBuy {
			buys++
		}
	}
	assert.Equal(t, 1, buys)
}

func TestNormalizeSignals(t *testing.T) {
	in := []model.Signal{
		{TS: 1, Side: model.SideBuy},
		{TS: 2, Side: model.SideBuy},  // same-side run, dropped
		{TS: 2, Side: model.SideSell}, // duplicate timestamp, dropped
		{TS: 3, Side: model.SideSell},
		{TS: 4, Side: model.SideBuy},
	}
	out := normalizeSignals(in)
	require.Len(t, out, 3)
	assert.Equal(t, int64(1), out[0].TS)
	assert.Equal(t, int64(3), out[1].TS)
	assert.Equal(t, int64(4), out[2].TS)
}

func TestVolumeSpike_LabelsAndDirection(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	closes[25] = 103 // up bar on the spike
	bars := barsFromCloses(closes)
	bars[25].Volume = 10000
	res := mustRun(t, "volume_spike", bars, nil)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, model.SideBuy, res.Signals[0].Side)
	assert.Contains(t, res.Signals[0].Label, "x avg")
}
