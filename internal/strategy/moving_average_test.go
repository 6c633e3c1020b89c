package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMATest(t *testing.T) *MovingAverage {
	t.Helper()
	strat, err := NewMovingAverage(map[string]any{
		"short_ma":   2,
		"long_ma":    3,
		"min_volume": 100,
	})
	require.NoError(t, err)
	return strat
}

func TestMovingAverageGoldenCross(t *testing.T) {
	strat := newMATest(t)
	// sma2: [_, 9.5, 8.5, 7.5, 9.5]  sma3: [_, _, 9, 8, 9]
	// 前一根 7.5<=8，当前根 9.5>9 → 金叉
	bars := mkBars([]float64{10, 9, 8, 7, 12}, nil)
	sig, err := strat.Analyze(context.Background(), Request{Symbol: "TEST", Bars: bars})
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, SignalBuy, sig.Type)
	assert.InDelta(t, 12, sig.Price, 1e-9)
	assert.InDelta(t, 9.5, sig.Details["ma_short"], 1e-9)
	assert.InDelta(t, 9, sig.Details["ma_long"], 1e-9)
	// 均线信号不携带退出水位
	assert.Zero(t, sig.StopLoss)
	assert.Zero(t, sig.Target)
}

func TestMovingAverageDeathCross(t *testing.T) {
	strat := newMATest(t)
	// sma2: [_, 10.5, 11.5, 12.5, 10.5]  sma3: [_, _, 11, 12, 11]
	bars := mkBars([]float64{10, 11, 12, 13, 8}, nil)
	sig, err := strat.Analyze(context.Background(), Request{Symbol: "TEST", Bars: bars})
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, SignalSell, sig.Type)
}

func TestMovingAverageNoCross(t *testing.T) {
	strat := newMATest(t)
	bars := mkBars([]float64{10, 11, 12, 13, 14}, nil)
	sig, err := strat.Analyze(context.Background(), Request{Symbol: "TEST", Bars: bars})
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestMovingAverageVolumeGate(t *testing.T) {
	strat := newMATest(t)
	bars := mkBars([]float64{10, 9, 8, 7, 12}, []float64{50, 50, 50, 50, 50})
	sig, err := strat.Analyze(context.Background(), Request{Symbol: "TEST", Bars: bars})
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestMovingAverageInsufficientBars(t *testing.T) {
	strat := newMATest(t)
	sig, err := strat.Analyze(context.Background(), Request{Symbol: "TEST", Bars: mkBars([]float64{10, 11, 12}, nil)})
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestMovingAverageSettingsValidation(t *testing.T) {
	_, err := NewMovingAverage(map[string]any{"short_ma": 100, "long_ma": 50})
	assert.Error(t, err)
}
