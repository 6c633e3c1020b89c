package strategy

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"sygnal/internal/logger"
)

// ConsecutiveGainsName 是连涨策略的注册名。
const ConsecutiveGainsName = "consecutive_gains"

func init() {
	Register(ConsecutiveGainsName, func(settings map[string]any) (Strategy, error) {
		return NewConsecutiveGains(settings)
	})
}

// ConsecutiveGainsSettings 是连涨策略的参数。
type ConsecutiveGainsSettings struct {
	MinDays        int     `mapstructure:"min_days"`
	MinVolume      float64 `mapstructure:"min_volume"`
	MinGainPercent float64 `mapstructure:"min_gain_percent"` // 单日最低涨幅（百分比）
}

func (s *ConsecutiveGainsSettings) applyDefaults() {
	if s.MinDays <= 0 {
		s.MinDays = 5
	}
	if s.MinVolume <= 0 {
		s.MinVolume = 10_000
	}
	if s.MinGainPercent <= 0 {
		s.MinGainPercent = 0.1
	}
}

// ConsecutiveGains 识别连续 N 日涨幅不低于阈值的标的，产出 UPTREND 信号。
type ConsecutiveGains struct {
	settings ConsecutiveGainsSettings
}

func NewConsecutiveGains(raw map[string]any) (*ConsecutiveGains, error) {
	var settings ConsecutiveGainsSettings
	if len(raw) > 0 {
		if err := mapstructure.WeakDecode(raw, &settings); err != nil {
			return nil, fmt.Errorf("consecutive_gains 设置无效: %w", err)
		}
	}
	settings.applyDefaults()
	return &ConsecutiveGains{settings: settings}, nil
}

func (c *ConsecutiveGains) Name() string { return ConsecutiveGainsName }

// MinBars 需要 min_days+1 根才能计算 min_days 个日收益。
func (c *ConsecutiveGains) MinBars() int { return c.settings.MinDays + 1 }

func (c *ConsecutiveGains) Analyze(ctx context.Context, req Request) (*Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := c.settings
	bars := req.Bars
	if len(bars) < cfg.MinDays+1 {
		logger.Debugf("%s: 数据不足，需要 %d 根，仅有 %d 根", req.Symbol, cfg.MinDays+1, len(bars))
		return nil, nil
	}
	n := len(bars)
	volume := bars[n-1].Volume
	if volume < cfg.MinVolume {
		return nil, nil
	}
	for k := n - cfg.MinDays; k < n; k++ {
		prev := bars[k-1].Close
		if prev <= 0 {
			return nil, nil
		}
		gain := (bars[k].Close - prev) / prev * 100
		if gain < cfg.MinGainPercent {
			return nil, nil
		}
	}
	base := bars[n-1-cfg.MinDays].Close
	totalGain := (bars[n-1].Close/base - 1) * 100
	return &Signal{
		Symbol:   req.Symbol,
		Type:     SignalUptrend,
		Strategy: c.Name(),
		Price:    bars[n-1].Close,
		Details: map[string]any{
			"days_up":    cfg.MinDays,
			"total_gain": totalGain,
			"volume":     volume,
		},
	}, nil
}
