package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sygnal/internal/strategy"
)

func newTestResultStore(t *testing.T) *ResultStore {
	t.Helper()
	store, err := NewResultStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult() Result {
	trade := ClosedPosition{
		Position: Position{
			Symbol:     "AAPL",
			SignalType: strategy.SignalAlert,
			SignalTS:   1000,
			EntryIndex: 4,
			EntryTS:    2000,
			EntryPrice: 100,
			StopLoss:   95,
			Target:     110,
		},
		ExitIndex:  7,
		ExitTS:     5000,
		ExitPrice:  110,
		ExitReason: ExitReasonTarget,
		Profit:     10,
		PctChange:  10,
	}
	res := Result{
		Symbol:   "AAPL",
		Strategy: "momentum_trend_breakout",
		Outcome:  OutcomeCompleted,
		Bars:     250,
		Signals: []SignalRecord{{
			Index: 3,
			TS:    1000,
			Signal: strategy.Signal{
				Symbol:   "AAPL",
				Type:     strategy.SignalAlert,
				Strategy: "momentum_trend_breakout",
				Price:    100,
				StopLoss: 95,
				Target:   110,
			},
		}},
		Trades: []ClosedPosition{trade},
	}
	res.Summary = Summarize(res.Trades)
	return res
}

func TestResultStoreRunLifecycle(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()

	run := NewRun("AAPL", "momentum_trend_breakout")
	require.NoError(t, store.InsertRun(ctx, run))
	require.NoError(t, store.UpdateRunStatus(ctx, run.ID, RunStatusRunning, ""))
	require.NoError(t, store.SaveResult(ctx, run.ID, sampleResult()))

	saved, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, saved.Status)
	assert.Equal(t, OutcomeCompleted, saved.Outcome)
	assert.Equal(t, 250, saved.Bars)
	assert.Equal(t, 1, saved.SignalCount)
	assert.Equal(t, 1, saved.TradeCount)
	assert.Equal(t, 1, saved.Summary.Wins)

	trades, err := store.ListTrades(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, strategy.SignalAlert, trades[0].SignalType)
	assert.InDelta(t, 110, trades[0].ExitPrice, 1e-9)

	signals, err := store.ListSignals(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, 3, signals[0].Index)
	assert.Equal(t, strategy.SignalAlert, signals[0].Signal.Type)
}

func TestResultStoreFailedRun(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()

	run := NewRun("AAPL", "momentum_trend_breakout")
	require.NoError(t, store.InsertRun(ctx, run))
	require.NoError(t, store.UpdateRunStatus(ctx, run.ID, RunStatusFailed, "拉取历史失败"))

	saved, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, saved.Status)
	assert.Equal(t, "拉取历史失败", saved.Error)
}

func TestResultStoreUnknownRun(t *testing.T) {
	store := newTestResultStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.Error(t, err)
	assert.Error(t, store.UpdateRunStatus(context.Background(), "missing", RunStatusDone, ""))
}

func TestResultStoreWriteAsSink(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, sampleResult()))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "AAPL", runs[0].Symbol)
	assert.Equal(t, RunStatusDone, runs[0].Status)
	assert.Equal(t, 1, runs[0].TradeCount)
}
