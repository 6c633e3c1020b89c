package backtest

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus 标识持久化回测记录的生命周期。
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

// Run 是一次回测的持久化记录，信号与成交账本另表存储。
type Run struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Strategy       string    `json:"strategy"`
	Status         RunStatus `json:"status"`
	Outcome        Outcome   `json:"outcome,omitempty"`
	Bars           int       `json:"bars"`
	SignalCount    int       `json:"signal_count"`
	TradeCount     int       `json:"trade_count"`
	OpenDiscarded  int       `json:"open_discarded"`
	SkippedEntries int       `json:"skipped_entries"`
	Summary        Summary   `json:"summary"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      int64     `json:"created_at"`
	UpdatedAt      int64     `json:"updated_at"`
}

// NewRun 创建 pending 状态的新记录。
func NewRun(symbol, strategy string) Run {
	now := time.Now().UnixMilli()
	return Run{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Strategy:  strategy,
		Status:    RunStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
