package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := validateStrategies(c.Strategies); err != nil {
		return err
	}
	if err := c.Scan.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (s *ScanConfig) validate() error {
	if s.Interval != "" && !IsValidInterval(s.Interval) {
		return fmt.Errorf("scan.interval 非法: %s", s.Interval)
	}
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("scan.offset_seconds 必须 >= 0")
	}
	return nil
}

// IsValidInterval 简易校验：以数字开头，以 m/h/d/w 结尾
func IsValidInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (b *BacktestConfig) validate() error {
	if strings.TrimSpace(b.Strategy) == "" {
		return fmt.Errorf("backtest.strategy 不能为空")
	}
	switch strings.ToLower(strings.TrimSpace(b.Policy)) {
	case "single", "multi":
	default:
		return fmt.Errorf("backtest.policy 仅支持 single/multi，收到 %s", b.Policy)
	}
	if b.MinHistory <= 0 {
		return fmt.Errorf("backtest.min_history 必须 > 0")
	}
	if b.WarmupBars < 0 {
		return fmt.Errorf("backtest.warmup_bars 必须 >= 0")
	}
	if b.MaxConcurrent <= 0 {
		return fmt.Errorf("backtest.max_concurrent 必须 > 0")
	}
	for _, t := range b.EntryTypes {
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "ALERT", "BUY", "UPTREND", "WATCH", "SELL":
		default:
			return fmt.Errorf("backtest.entry_types 含未知类型: %s", t)
		}
	}
	return nil
}

func validateStrategies(s []StrategyConfig) error {
	seen := make(map[string]bool, len(s))
	for _, sc := range s {
		name := strings.ToLower(strings.TrimSpace(sc.Name))
		if name == "" {
			return fmt.Errorf("strategies 含无名条目")
		}
		if seen[name] {
			return fmt.Errorf("strategies 含重复条目: %s", sc.Name)
		}
		seen[name] = true
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("已启用 telegram 通知但缺少 bot_token 或 chat_id")
		}
	}
	return nil
}
