package backtest

import (
	"context"
	"fmt"
	"math"

	"sygnal/internal/logger"
	"sygnal/internal/market"
	"sygnal/internal/strategy"
)

// PositionPolicy 控制并发持仓数量。
type PositionPolicy string

const (
	// PolicySingle 同一时刻至多一笔持仓；当日先平仓释放容量，再尝试开仓。
	PolicySingle PositionPolicy = "single"
	// PolicyMulti 不限制并发持仓数。
	PolicyMulti PositionPolicy = "multi"
)

// EngineConfig 是一次回测的全部策略外参数。
type EngineConfig struct {
	Policy     PositionPolicy
	EntryGuard bool // 次日开盘低于触发价时放弃建仓
	MinHistory int  // 序列最短长度，低于该值按数据不足处理
	WarmupBars int  // 迭代起点；0 表示取策略的 MinBars
	// EntryTypes 列出允许建仓的信号类型；空表示默认（ALERT/BUY/UPTREND）。
	// WATCH 与 SELL 只进信号账本，不建多头仓位。
	EntryTypes []strategy.SignalType
}

func (c *EngineConfig) applyDefaults() {
	if c.Policy == "" {
		c.Policy = PolicySingle
	}
	if c.MinHistory <= 0 {
		c.MinHistory = 200
	}
	if len(c.EntryTypes) == 0 {
		c.EntryTypes = []strategy.SignalType{strategy.SignalAlert, strategy.SignalBuy, strategy.SignalUptrend}
	}
}

func (c EngineConfig) validate() error {
	if c.Policy != PolicySingle && c.Policy != PolicyMulti {
		return fmt.Errorf("未知持仓策略: %s", c.Policy)
	}
	if c.WarmupBars < 0 {
		return fmt.Errorf("warmup_bars 不能为负: %d", c.WarmupBars)
	}
	return nil
}

// Outcome 标识单 symbol 回测的终态。数据不足是合法结果而非错误，
// 批量扫描遇到它继续处理其余 symbol。
type Outcome string

const (
	OutcomeCompleted           Outcome = "completed"
	OutcomeInsufficientHistory Outcome = "insufficient_history"
)

// SignalRecord 把策略产出与其回测日期绑定后进入信号账本。
type SignalRecord struct {
	Index  int             `json:"index"`
	TS     int64           `json:"ts"`
	Signal strategy.Signal `json:"signal"`
}

// Result 是一次单 symbol 模拟的全部产出。
type Result struct {
	Symbol         string           `json:"symbol"`
	Strategy       string           `json:"strategy"`
	Outcome        Outcome          `json:"outcome"`
	Bars           int              `json:"bars"`
	Signals        []SignalRecord   `json:"signals"`
	Trades         []ClosedPosition `json:"trades"`
	OpenDiscarded  int              `json:"open_discarded"`  // 序列结束时仍未平仓、被丢弃的持仓数
	SkippedEntries int              `json:"skipped_entries"` // 入场守卫拦下的建仓次数
	Summary        Summary          `json:"summary"`
}

// Engine 按日重放历史序列：每个模拟日先用当日 bar 对既有持仓做平仓检查，
// 再把截至当日的窗口交给策略，信号在次日开盘建仓。单 symbol 内
// 完全同步、确定性；跨 symbol 的并行由 Runner 负责。
type Engine struct {
	cfg   EngineConfig
	strat strategy.Strategy
}

func NewEngine(strat strategy.Strategy, cfg EngineConfig) (*Engine, error) {
	if strat == nil {
		return nil, fmt.Errorf("strategy 不能为空")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, strat: strat}, nil
}

// Run 对单个 symbol 执行完整模拟。bars 必须升序且按时间戳去重；
// 长度不足 MinHistory 时返回 insufficient_history 结果，不视为错误。
func (e *Engine) Run(ctx context.Context, symbol string, bars []market.Bar) (Result, error) {
	res := Result{
		Symbol:   symbol,
		Strategy: e.strat.Name(),
		Outcome:  OutcomeCompleted,
		Bars:     len(bars),
	}
	if len(bars) < e.cfg.MinHistory {
		logger.Warnf("[backtest] %s 数据不足: %d 根（最少 %d）", symbol, len(bars), e.cfg.MinHistory)
		res.Outcome = OutcomeInsufficientHistory
		res.Summary = Summarize(nil)
		return res, nil
	}
	if err := market.ValidateAscending(bars); err != nil {
		return Result{}, fmt.Errorf("%s 序列非法: %w", symbol, err)
	}

	warmup := e.cfg.WarmupBars
	if warmup <= 0 {
		warmup = e.strat.MinBars()
	}

	var open []*Position
	n := len(bars)
	// 信号日 i 的建仓发生在 i+1，因此迭代止于 n-2
	for i := warmup; i <= n-2; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		bar := bars[i]

		// Step A：先平仓。只检查 entry_index < i 的持仓，当根开平被排除。
		open = e.closeOnBar(&res, open, bar, i)

		// Step B：后开仓。单仓策略下有持仓则跳过评估。
		if e.cfg.Policy == PolicySingle && len(open) > 0 {
			continue
		}
		sig, err := e.strat.Analyze(ctx, strategy.Request{Symbol: symbol, Bars: bars[:i+1]})
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, err
			}
			logger.Warnf("[backtest] %s 第 %d 日策略评估失败: %v", symbol, i, err)
			continue
		}
		if sig == nil {
			continue
		}
		res.Signals = append(res.Signals, SignalRecord{Index: i, TS: bar.TS, Signal: *sig})

		if !e.entryAllowed(sig.Type) || !canExit(sig) {
			continue
		}
		next := bars[i+1]
		if e.cfg.EntryGuard && sig.Trigger > 0 && next.Open < sig.Trigger {
			// 突破未确认，放弃这次建仓；该 bar 之后仍可响应新信号
			logger.Debugf("[backtest] %s 次日开盘 %.2f 低于触发价 %.2f，跳过建仓", symbol, next.Open, sig.Trigger)
			res.SkippedEntries++
			continue
		}
		open = append(open, &Position{
			Symbol:        symbol,
			SignalType:    sig.Type,
			SignalTS:      bar.TS,
			ConditionsMet: sig.ConditionsMet,
			EntryIndex:    i + 1,
			EntryTS:       next.TS,
			EntryPrice:    next.Open,
			StopLoss:      sig.StopLoss,
			Target:        sig.Target,
		})
	}

	// 未平仓持仓不强制平仓也不计入账本：只报告已实现的结果
	res.OpenDiscarded = len(open)
	res.Summary = Summarize(res.Trades)
	logger.Infof("[backtest] %s 完成: %d 根, 信号 %d, 成交 %d, 丢弃 %d",
		symbol, res.Bars, len(res.Signals), len(res.Trades), res.OpenDiscarded)
	return res, nil
}

// closeOnBar 对所有符合条件的持仓执行止损/目标触发检查。
// 价格比较为闭区间包含（low <= level <= high），不引入容差。
func (e *Engine) closeOnBar(res *Result, open []*Position, bar market.Bar, i int) []*Position {
	remaining := open[:0]
	for _, p := range open {
		if p.EntryIndex >= i {
			remaining = append(remaining, p)
			continue
		}
		stopHit := p.StopLoss > 0 && bar.Low <= p.StopLoss && p.StopLoss <= bar.High
		targetHit := p.Target > 0 && bar.Low <= p.Target && p.Target <= bar.High
		if stopHit && targetHit {
			// 同日双触发：距开盘更近的水位视为先触发；等距时止损优先
			if math.Abs(bar.Open-p.StopLoss) <= math.Abs(bar.Open-p.Target) {
				targetHit = false
			} else {
				stopHit = false
			}
		}
		switch {
		case stopHit:
			res.Trades = append(res.Trades, closePosition(p, i, bar.TS, p.StopLoss, ExitReasonStopLoss))
		case targetHit:
			res.Trades = append(res.Trades, closePosition(p, i, bar.TS, p.Target, ExitReasonTarget))
		default:
			remaining = append(remaining, p)
		}
	}
	return remaining
}

func (e *Engine) entryAllowed(t strategy.SignalType) bool {
	for _, allowed := range e.cfg.EntryTypes {
		if t == allowed {
			return true
		}
	}
	return false
}
