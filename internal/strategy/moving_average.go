package strategy

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"sygnal/internal/indicator"
	"sygnal/internal/logger"
	"sygnal/internal/market"
)

// MovingAverageName 是均线交叉策略的注册名。
const MovingAverageName = "moving_average"

func init() {
	Register(MovingAverageName, func(settings map[string]any) (Strategy, error) {
		return NewMovingAverage(settings)
	})
}

// MovingAverageSettings 是均线交叉策略的参数。
type MovingAverageSettings struct {
	ShortMA   int     `mapstructure:"short_ma"`
	LongMA    int     `mapstructure:"long_ma"`
	MinVolume float64 `mapstructure:"min_volume"`
}

func (s *MovingAverageSettings) applyDefaults() {
	if s.ShortMA <= 0 {
		s.ShortMA = 50
	}
	if s.LongMA <= 0 {
		s.LongMA = 100
	}
	if s.MinVolume <= 0 {
		s.MinVolume = 10_000
	}
}

func (s MovingAverageSettings) validate() error {
	if s.ShortMA >= s.LongMA {
		return fmt.Errorf("short_ma 必须小于 long_ma: %d >= %d", s.ShortMA, s.LongMA)
	}
	return nil
}

// MovingAverage 在短均线与长均线发生交叉的当根产出 BUY 或 SELL 信号。
// 交叉有方向性，单次调用至多一种信号。
type MovingAverage struct {
	settings MovingAverageSettings
}

func NewMovingAverage(raw map[string]any) (*MovingAverage, error) {
	var settings MovingAverageSettings
	if len(raw) > 0 {
		if err := mapstructure.WeakDecode(raw, &settings); err != nil {
			return nil, fmt.Errorf("moving_average 设置无效: %w", err)
		}
	}
	settings.applyDefaults()
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &MovingAverage{settings: settings}, nil
}

func (m *MovingAverage) Name() string { return MovingAverageName }

// MinBars 需要比长均线窗口多一根，才能比较最近两根的均线关系。
func (m *MovingAverage) MinBars() int { return m.settings.LongMA + 1 }

func (m *MovingAverage) Analyze(ctx context.Context, req Request) (*Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := m.settings
	bars := req.Bars
	if len(bars) < cfg.LongMA+1 {
		logger.Debugf("%s: 数据不足，需要 %d 根，仅有 %d 根", req.Symbol, cfg.LongMA+1, len(bars))
		return nil, nil
	}
	n := len(bars)
	closes := market.Closes(bars)
	maShort := indicator.SMA(closes, cfg.ShortMA)
	maLong := indicator.SMA(closes, cfg.LongMA)

	prevShort, prevLong := maShort[n-2], maLong[n-2]
	curShort, curLong := maShort[n-1], maLong[n-1]

	buy := prevShort <= prevLong && curShort > curLong
	sell := prevShort >= prevLong && curShort < curLong

	volume := bars[n-1].Volume
	if volume < cfg.MinVolume {
		logger.Debugf("%s: 末日成交量过低: %.0f < %.0f", req.Symbol, volume, cfg.MinVolume)
		return nil, nil
	}

	var sigType SignalType
	switch {
	case buy:
		sigType = SignalBuy
	case sell:
		sigType = SignalSell
	default:
		return nil, nil
	}
	return &Signal{
		Symbol:   req.Symbol,
		Type:     sigType,
		Strategy: m.Name(),
		Price:    closes[n-1],
		Details: map[string]any{
			"ma_short": curShort,
			"ma_long":  curLong,
			"volume":   volume,
		},
	}, nil
}
