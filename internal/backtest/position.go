package backtest

import (
	"sygnal/internal/strategy"
)

// 平仓原因。退出价取的是触发水位本身，不是模拟成交价。
const (
	ExitReasonStopLoss = "stop_loss"
	ExitReasonTarget   = "target"
)

// Position 是引擎内部的持仓实体。信号出现的次日以开盘价建仓，
// 由引擎每日的平仓检查独占地推进状态；平仓后从 OPEN 集合移除，
// 仅以 ClosedPosition 的形式留在账本中。
type Position struct {
	Symbol        string              `json:"symbol"`
	SignalType    strategy.SignalType `json:"signal_type"`
	SignalTS      int64               `json:"signal_ts"`
	ConditionsMet int                 `json:"conditions_met"`
	EntryIndex    int                 `json:"entry_index"`
	EntryTS       int64               `json:"entry_ts"`
	EntryPrice    float64             `json:"entry_price"`
	StopLoss      float64             `json:"stop_loss"`
	Target        float64             `json:"target"`
}

// ClosedPosition 是已平仓持仓的不可变快照。
// 不变式：ExitIndex 严格大于 EntryIndex（禁止当根开平）。
type ClosedPosition struct {
	Position
	ExitIndex  int     `json:"exit_index"`
	ExitTS     int64   `json:"exit_ts"`
	ExitPrice  float64 `json:"exit_price"`
	ExitReason string  `json:"exit_reason"`
	Profit     float64 `json:"profit"`
	PctChange  float64 `json:"pct_change"`
}

func closePosition(p *Position, exitIndex int, exitTS int64, exitPrice float64, reason string) ClosedPosition {
	profit := exitPrice - p.EntryPrice
	pct := 0.0
	if p.EntryPrice != 0 {
		pct = profit / p.EntryPrice * 100
	}
	return ClosedPosition{
		Position:   *p,
		ExitIndex:  exitIndex,
		ExitTS:     exitTS,
		ExitPrice:  exitPrice,
		ExitReason: reason,
		Profit:     profit,
		PctChange:  pct,
	}
}

// canExit 判断持仓是否具备可触发的退出水位；两者皆无的持仓
// 永远无法平仓，引擎直接不建仓（仅记录信号）。
func canExit(sig *strategy.Signal) bool {
	return sig.StopLoss > 0 || sig.Target > 0
}
