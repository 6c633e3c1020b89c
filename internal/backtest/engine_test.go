package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sygnal/internal/market"
	"sygnal/internal/strategy"
)

// scriptStrategy 在指定的回测日产出预置信号，其余日子保持沉默。
type scriptStrategy struct {
	minBars int
	signals map[int]*strategy.Signal
}

func (s *scriptStrategy) Name() string { return "script" }

func (s *scriptStrategy) MinBars() int {
	if s.minBars > 0 {
		return s.minBars
	}
	return 1
}

func (s *scriptStrategy) Analyze(_ context.Context, req strategy.Request) (*strategy.Signal, error) {
	return s.signals[len(req.Bars)-1], nil
}

func flatBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Symbol: "TEST",
			TS:     int64(i+1) * 86_400_000,
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100,
			Volume: 1000,
		}
	}
	return bars
}

func alertSignal(stop, target float64) *strategy.Signal {
	return &strategy.Signal{
		Symbol:   "TEST",
		Type:     strategy.SignalAlert,
		Strategy: "script",
		Price:    100,
		StopLoss: stop,
		Target:   target,
	}
}

func newTestEngine(t *testing.T, strat strategy.Strategy, cfg EngineConfig) *Engine {
	t.Helper()
	if cfg.MinHistory == 0 {
		cfg.MinHistory = 5
	}
	eng, err := NewEngine(strat, cfg)
	require.NoError(t, err)
	return eng
}

func TestEngineInsufficientHistory(t *testing.T) {
	eng := newTestEngine(t, &scriptStrategy{}, EngineConfig{MinHistory: 10})
	res, err := eng.Run(context.Background(), "TEST", flatBars(3))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientHistory, res.Outcome)
	assert.Equal(t, 3, res.Bars)
	assert.Empty(t, res.Signals)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.Summary.TotalTrades)
}

func TestEngineTargetExit(t *testing.T) {
	strat := &scriptStrategy{signals: map[int]*strategy.Signal{3: alertSignal(95, 105)}}
	eng := newTestEngine(t, strat, EngineConfig{})

	bars := flatBars(12)
	bars[7].High = 106 // 目标价 105 落在该根区间内

	res, err := eng.Run(context.Background(), "TEST", bars)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	require.Len(t, res.Trades, 1)

	trade := res.Trades[0]
	assert.Equal(t, 4, trade.EntryIndex) // 信号次日开盘建仓
	assert.InDelta(t, 100, trade.EntryPrice, 1e-9)
	assert.Equal(t, 7, trade.ExitIndex)
	assert.InDelta(t, 105, trade.ExitPrice, 1e-9)
	assert.Equal(t, ExitReasonTarget, trade.ExitReason)
	assert.InDelta(t, 5, trade.Profit, 1e-9)
	assert.InDelta(t, 5, trade.PctChange, 1e-9)
	assert.Equal(t, 1, res.Summary.Wins)
}

func TestEngineStopLossExit(t *testing.T) {
	strat := &scriptStrategy{signals: map[int]*strategy.Signal{3: alertSignal(95, 105)}}
	eng := newTestEngine(t, strat, EngineConfig{})

	bars := flatBars(12)
	bars[6].Low = 94

	res, err := eng.Run(context.Background(), "TEST", bars)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, ExitReasonStopLoss, trade.ExitReason)
	assert.InDelta(t, 95, trade.ExitPrice, 1e-9)
	assert.InDelta(t, -5, trade.Profit, 1e-9)
	assert.Equal(t, 1, res.Summary.Losses)
}

func TestEngineNoExitOnEntryBar(t *testing.T) {
	strat := &scriptStrategy{signals: map[int]*strategy.Signal{3: alertSignal(95, 105)}}
	eng := newTestEngine(t, strat, EngineConfig{})

	bars := flatBars(12)
	// 建仓当根同时覆盖止损与目标，也不得在该根平仓
	bars[4].High = 106
	bars[4].Low = 94
	bars[5].High = 106

	res, err := eng.Run(context.Background(), "TEST", bars)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, 4, trade.EntryIndex)
	assert.Equal(t, 5, trade.ExitIndex)
	assert.Greater(t, trade.ExitIndex, trade.EntryIndex)
}

func TestEngineAmbiguousBar(t *testing.T) {
	run := func(t *testing.T, open float64) ClosedPosition {
		strat := &scriptStrategy{signals: map[int]*strategy.Signal{3: alertSignal(95, 105)}}
		eng := newTestEngine(t, strat, EngineConfig{})
		bars := flatBars(12)
		bars[6].Open = open
		bars[6].High = 106
		bars[6].Low = 94
		res, err := eng.Run(context.Background(), "TEST", bars)
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		return res.Trades[0]
	}

	t.Run("StopCloserToOpen", func(t *testing.T) {
		trade := run(t, 97)
		assert.Equal(t, ExitReasonStopLoss, trade.ExitReason)
	})

	t.Run("TargetCloserToOpen", func(t *testing.T) {
		trade := run(t, 103)
		assert.Equal(t, ExitReasonTarget, trade.ExitReason)
	})

	t.Run("ExactTiePrefersStop", func(t *testing.T) {
		trade := run(t, 100)
		assert.Equal(t, ExitReasonStopLoss, trade.ExitReason)
	})
}

func TestEngineEntryGuard(t *testing.T) {
	sig := alertSignal(95, 105)
	sig.Trigger = 102
	strat := &scriptStrategy{signals: map[int]*strategy.Signal{3: sig}}
	eng := newTestEngine(t, strat, EngineConfig{EntryGuard: true})

	// 次日开盘 100 低于触发价 102 → 放弃建仓
	res, err := eng.Run(context.Background(), "TEST", flatBars(12))
	require.NoError(t, err)
	assert.Len(t, res.Signals, 1)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.SkippedEntries)
	assert.Equal(t, 0, res.OpenDiscarded)
}

func TestEnginePositionPolicies(t *testing.T) {
	mkStrat := func() *scriptStrategy {
		return &scriptStrategy{signals: map[int]*strategy.Signal{
			3: alertSignal(95, 105),
			6: alertSignal(95, 105),
		}}
	}

	t.Run("SingleSkipsWhileOpen", func(t *testing.T) {
		eng := newTestEngine(t, mkStrat(), EngineConfig{Policy: PolicySingle})
		res, err := eng.Run(context.Background(), "TEST", flatBars(12))
		require.NoError(t, err)
		// 首仓未平，第 6 日不再评估
		assert.Len(t, res.Signals, 1)
		assert.Equal(t, 1, res.OpenDiscarded)
	})

	t.Run("MultiAllowsConcurrent", func(t *testing.T) {
		eng := newTestEngine(t, mkStrat(), EngineConfig{Policy: PolicyMulti})
		res, err := eng.Run(context.Background(), "TEST", flatBars(12))
		require.NoError(t, err)
		assert.Len(t, res.Signals, 2)
		assert.Equal(t, 2, res.OpenDiscarded)
	})
}

func TestEngineWatchSignalNotEntered(t *testing.T) {
	sig := alertSignal(95, 105)
	sig.Type = strategy.SignalWatch
	strat := &scriptStrategy{signals: map[int]*strategy.Signal{3: sig}}
	eng := newTestEngine(t, strat, EngineConfig{})

	res, err := eng.Run(context.Background(), "TEST", flatBars(12))
	require.NoError(t, err)
	assert.Len(t, res.Signals, 1)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.OpenDiscarded)
}

func TestEngineSignalWithoutExitLevels(t *testing.T) {
	sig := &strategy.Signal{Symbol: "TEST", Type: strategy.SignalBuy, Strategy: "script", Price: 100}
	strat := &scriptStrategy{signals: map[int]*strategy.Signal{3: sig}}
	eng := newTestEngine(t, strat, EngineConfig{})

	// 无退出水位的信号只进账本，不建仓
	res, err := eng.Run(context.Background(), "TEST", flatBars(12))
	require.NoError(t, err)
	assert.Len(t, res.Signals, 1)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.OpenDiscarded)
}

func TestEngineNoSignals(t *testing.T) {
	eng := newTestEngine(t, &scriptStrategy{}, EngineConfig{})
	res, err := eng.Run(context.Background(), "TEST", flatBars(12))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Empty(t, res.Signals)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0, res.Summary.TotalTrades)
}

func TestEngineRejectsUnsortedBars(t *testing.T) {
	eng := newTestEngine(t, &scriptStrategy{}, EngineConfig{})
	bars := flatBars(6)
	bars[2].TS = bars[1].TS // 重复时间戳
	_, err := eng.Run(context.Background(), "TEST", bars)
	assert.Error(t, err)
}

func TestEngineContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := newTestEngine(t, &scriptStrategy{}, EngineConfig{})
	_, err := eng.Run(ctx, "TEST", flatBars(12))
	assert.Error(t, err)
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil, EngineConfig{})
	assert.Error(t, err)

	_, err = NewEngine(&scriptStrategy{}, EngineConfig{Policy: "both"})
	assert.Error(t, err)
}
