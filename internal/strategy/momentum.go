package strategy

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"sygnal/internal/indicator"
	"sygnal/internal/logger"
	"sygnal/internal/market"
)

// MomentumName 是动量趋势突破策略的注册名。
const MomentumName = "momentum_trend_breakout"

func init() {
	Register(MomentumName, func(settings map[string]any) (Strategy, error) {
		return NewMomentum(settings)
	})
}

// MomentumSettings 是动量趋势突破策略的全部数值阈值，单次回测期间不可变。
type MomentumSettings struct {
	TrendPeriod         int     `mapstructure:"trend_period"`          // SMA/均量/滚动最高窗口
	MomentumPeriod      int     `mapstructure:"momentum_period"`       // RSI 与 ATR 周期
	MinVolumeMultiplier float64 `mapstructure:"min_volume_multiplier"` // 量能条件：末日量 ≥ 倍数×均量
	RSIThreshold        float64 `mapstructure:"rsi_threshold"`
	MACDFast            int     `mapstructure:"macd_fast"`
	MACDSlow            int     `mapstructure:"macd_slow"`
	MACDSignal          int     `mapstructure:"macd_signal"`
	MinConditions       int     `mapstructure:"min_conditions"` // ==该值→WATCH，≥该值+1→ALERT
	RiskRewardRatio     float64 `mapstructure:"risk_reward_ratio"`
	ATRMultiplier       float64 `mapstructure:"atr_multiplier"`
	MinTurnover         float64 `mapstructure:"min_turnover"` // 流动性门槛（价格×量）
	MaxWindow           int     `mapstructure:"max_window"`   // >0 时仅取窗口末尾 N 根
}

func (s *MomentumSettings) applyDefaults() {
	if s.TrendPeriod <= 0 {
		s.TrendPeriod = 5
	}
	if s.MomentumPeriod <= 0 {
		s.MomentumPeriod = 14
	}
	if s.MinVolumeMultiplier <= 0 {
		s.MinVolumeMultiplier = 1.2
	}
	if s.RSIThreshold <= 0 {
		s.RSIThreshold = 50
	}
	if s.MACDFast <= 0 {
		s.MACDFast = 12
	}
	if s.MACDSlow <= 0 {
		s.MACDSlow = 26
	}
	if s.MACDSignal <= 0 {
		s.MACDSignal = 9
	}
	if s.MinConditions <= 0 {
		s.MinConditions = 2
	}
	if s.RiskRewardRatio <= 0 {
		s.RiskRewardRatio = 3
	}
	if s.ATRMultiplier <= 0 {
		s.ATRMultiplier = 1.5
	}
	if s.MinTurnover <= 0 {
		s.MinTurnover = 500_000
	}
}

func (s MomentumSettings) validate() error {
	if s.MACDFast >= s.MACDSlow {
		return fmt.Errorf("macd_fast 必须小于 macd_slow: %d >= %d", s.MACDFast, s.MACDSlow)
	}
	return nil
}

// Momentum 实现动量趋势突破策略：上升趋势 + 流动性门槛之上，
// 统计 4 项佐证条件（量能、RSI、MACD 金叉、突破新高）并按数量分级。
type Momentum struct {
	settings MomentumSettings
}

func NewMomentum(raw map[string]any) (*Momentum, error) {
	var settings MomentumSettings
	if len(raw) > 0 {
		if err := mapstructure.WeakDecode(raw, &settings); err != nil {
			return nil, fmt.Errorf("momentum 设置无效: %w", err)
		}
	}
	settings.applyDefaults()
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &Momentum{settings: settings}, nil
}

func (m *Momentum) Name() string { return MomentumName }

// MinBars 返回产出信号所需的最少历史根数。
func (m *Momentum) MinBars() int { return m.settings.TrendPeriod }

func (m *Momentum) Analyze(ctx context.Context, req Request) (*Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := m.settings
	bars := req.Bars
	if cfg.MaxWindow > 0 && len(bars) > cfg.MaxWindow {
		bars = bars[len(bars)-cfg.MaxWindow:]
	}
	if len(bars) < cfg.TrendPeriod || len(bars) < 2 {
		logger.Debugf("%s: 数据不足（%d 根）", req.Symbol, len(bars))
		return nil, nil
	}
	n := len(bars)
	highs, lows, closes := market.HLC(bars)
	volumes := market.Volumes(bars)

	sma := indicator.SMA(closes, cfg.TrendPeriod)
	uptrend := closes[n-1] > sma[n-1] && closes[n-2] > sma[n-2]
	if !uptrend {
		logger.Debugf("%s: 上升趋势条件不满足", req.Symbol)
		return nil, nil
	}

	price := closes[n-1]
	turnover := volumes[n-1] * price
	if turnover < cfg.MinTurnover {
		logger.Debugf("%s: 成交额 %.2f 低于门槛 %.0f", req.Symbol, turnover, cfg.MinTurnover)
		return nil, nil
	}

	conditions := 0
	avgVolume := indicator.Last(indicator.SMA(volumes, cfg.TrendPeriod))
	volumeOK := volumes[n-1] >= cfg.MinVolumeMultiplier*avgVolume
	if volumeOK {
		conditions++
	}

	rsi := indicator.Last(indicator.RSI(closes, cfg.MomentumPeriod))
	if rsi > cfg.RSIThreshold {
		conditions++
	}

	macdLine, signalLine := indicator.MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	macdCross := macdLine[n-2] <= signalLine[n-2] && macdLine[n-1] > signalLine[n-1]
	if macdCross {
		conditions++
	}

	recentMax := indicator.Last(indicator.RollingMax(closes, cfg.TrendPeriod))
	breakout := price >= recentMax
	if breakout {
		conditions++
	}

	var sigType SignalType
	switch {
	case conditions >= cfg.MinConditions+1:
		sigType = SignalAlert
	case conditions == cfg.MinConditions:
		sigType = SignalWatch
	default:
		return nil, nil
	}

	atr := indicator.Last(indicator.ATR(highs, lows, closes, cfg.MomentumPeriod))
	stopLoss := price * 0.98
	if indicator.Defined(atr) && atr > 0 {
		stopLoss = price - cfg.ATRMultiplier*atr
	}
	target := price + cfg.RiskRewardRatio*(price-stopLoss)

	sig := &Signal{
		Symbol:        req.Symbol,
		Type:          sigType,
		Strategy:      m.Name(),
		Price:         price,
		Trigger:       recentMax,
		StopLoss:      stopLoss,
		Target:        target,
		ConditionsMet: conditions,
		Details: map[string]any{
			"uptrend":     true,
			"volume":      volumes[n-1],
			"avg_volume":  avgVolume,
			"rsi":         rsi,
			"macd":        macdLine[n-1],
			"macd_signal": signalLine[n-1],
			"breakout":    breakout,
			"atr":         atr,
			"turnover":    turnover,
		},
	}
	logger.Debugf("%s: 产出 %s 信号（条件数=%d 入场=%0.2f 止损=%0.2f 目标=%0.2f）",
		req.Symbol, sigType, conditions, sig.Trigger, sig.StopLoss, sig.Target)
	return sig, nil
}
