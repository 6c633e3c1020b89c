package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	t.Run("WarmupIsNaN", func(t *testing.T) {
		out := SMA([]float64{1, 2, 3, 4}, 2)
		require.Len(t, out, 4)
		assert.True(t, math.IsNaN(out[0]))
		assert.InDelta(t, 1.5, out[1], 1e-9)
		assert.InDelta(t, 2.5, out[2], 1e-9)
		assert.InDelta(t, 3.5, out[3], 1e-9)
	})

	t.Run("NaNInWindowPropagates", func(t *testing.T) {
		out := SMA([]float64{1, math.NaN(), 3, 4}, 2)
		assert.True(t, math.IsNaN(out[1]))
		assert.True(t, math.IsNaN(out[2]))
		assert.InDelta(t, 3.5, out[3], 1e-9)
	})

	t.Run("SeriesShorterThanWindow", func(t *testing.T) {
		out := SMA([]float64{1, 2}, 5)
		for _, v := range out {
			assert.True(t, math.IsNaN(v))
		}
	})
}

func TestRollingMax(t *testing.T) {
	out := RollingMax([]float64{1, 3, 2, 5, 4}, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 3, out[2], 1e-9)
	assert.InDelta(t, 5, out[3], 1e-9)
	assert.InDelta(t, 5, out[4], 1e-9)
}

func TestEMA(t *testing.T) {
	t.Run("SeededByFirstValue", func(t *testing.T) {
		// span=3 → α=0.5，首值直接作为种子
		out := EMA([]float64{2, 4, 4}, 3)
		assert.InDelta(t, 2, out[0], 1e-9)
		assert.InDelta(t, 3, out[1], 1e-9)
		assert.InDelta(t, 3.5, out[2], 1e-9)
	})

	t.Run("LeadingNaNSkipped", func(t *testing.T) {
		out := EMA([]float64{math.NaN(), 10, 12}, 3)
		assert.True(t, math.IsNaN(out[0]))
		assert.InDelta(t, 10, out[1], 1e-9)
		assert.InDelta(t, 11, out[2], 1e-9)
	})

	t.Run("NoWarmupHoleAfterSeed", func(t *testing.T) {
		series := []float64{5, 6, 7, 8, 9, 10}
		out := EMA(series, 4)
		for i := range out {
			assert.False(t, math.IsNaN(out[i]), "index %d", i)
		}
	})
}

func TestRSI(t *testing.T) {
	t.Run("AllGainsIs100", func(t *testing.T) {
		series := make([]float64, 20)
		for i := range series {
			series[i] = 100 + float64(i)
		}
		out := RSI(series, 14)
		// 前 period 个样本未定义
		for i := 0; i < 14; i++ {
			assert.True(t, math.IsNaN(out[i]), "index %d", i)
		}
		for i := 14; i < len(out); i++ {
			assert.InDelta(t, 100, out[i], 1e-9, "index %d", i)
		}
	})

	t.Run("FlatSeriesUndefined", func(t *testing.T) {
		series := []float64{50, 50, 50, 50, 50, 50}
		out := RSI(series, 3)
		for _, v := range out {
			assert.True(t, math.IsNaN(v))
		}
	})

	t.Run("MixedSeries", func(t *testing.T) {
		out := RSI([]float64{1, 2, 1.5, 3}, 2)
		// avg_gain=0.5 avg_loss=0.25 → rs=2 → 66.67
		assert.InDelta(t, 100-100.0/3, out[2], 1e-9)
		// avg_gain=0.75 avg_loss=0.25 → rs=3 → 75
		assert.InDelta(t, 75, out[3], 1e-9)
	})
}

func TestMACD(t *testing.T) {
	series := []float64{10, 11, 12, 13, 14, 15, 16, 17}
	line, sig := MACD(series, 3, 6, 4)
	require.Len(t, line, len(series))
	require.Len(t, sig, len(series))
	// 首值：快慢 EMA 种子相同 → macd=0，信号线种子也是 0
	assert.InDelta(t, 0, line[0], 1e-9)
	assert.InDelta(t, 0, sig[0], 1e-9)
	// 持续上涨时快线在慢线上方 → macd 为正且信号线滞后
	assert.Greater(t, line[len(line)-1], 0.0)
	assert.Greater(t, line[len(line)-1], sig[len(sig)-1])
}

func TestATR(t *testing.T) {
	highs := []float64{10, 11, 12}
	lows := []float64{9, 10, 10.5}
	closes := []float64{9.5, 10.5, 11}

	tr := TrueRange(highs, lows, closes)
	assert.InDelta(t, 1, tr[0], 1e-9) // 首根无前收盘
	assert.InDelta(t, 1.5, tr[1], 1e-9)
	assert.InDelta(t, 1.5, tr[2], 1e-9)

	atr := ATR(highs, lows, closes, 2)
	assert.True(t, math.IsNaN(atr[0]))
	assert.InDelta(t, 1.25, atr[1], 1e-9)
	assert.InDelta(t, 1.5, atr[2], 1e-9)
}

func TestLastAndDefined(t *testing.T) {
	assert.True(t, math.IsNaN(Last(nil)))
	assert.InDelta(t, 3, Last([]float64{1, 2, 3}), 1e-9)
	assert.False(t, Defined(math.NaN()))
	assert.False(t, Defined(math.Inf(1)))
	assert.True(t, Defined(0))
}
