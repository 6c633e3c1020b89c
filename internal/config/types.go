package config

import "strings"

// Config 是 Sygnal 的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	Data       DataConfig       `toml:"data"`
	Backtest   BacktestConfig   `toml:"backtest"`
	Strategies []StrategyConfig `toml:"strategies"`
	Scan       ScanConfig       `toml:"scan"`
	Report     ReportConfig     `toml:"report"`
	Notify     NotifyConfig     `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DataConfig 指定历史数据的落盘位置与导入来源。
type DataConfig struct {
	Root   string `toml:"root"`    // sqlite 库所在目录
	CSVDir string `toml:"csv_dir"` // 启动时批量导入的 CSV 目录，可为空
}

// BacktestConfig 对应引擎的全部策略外参数。
type BacktestConfig struct {
	Strategy      string   `toml:"strategy"`
	Policy        string   `toml:"policy"`      // "single" | "multi"
	EntryGuard    bool     `toml:"entry_guard"` // 次日开盘低于触发价时放弃建仓
	MinHistory    int      `toml:"min_history"`
	WarmupBars    int      `toml:"warmup_bars"`
	EntryTypes    []string `toml:"entry_types"`
	MaxConcurrent int      `toml:"max_concurrent"`
}

// StrategyConfig 携带某个策略的原始设置，缺省项由策略自身补全。
type StrategyConfig struct {
	Name     string         `toml:"name"`
	Settings map[string]any `toml:"settings"`
}

// ScanConfig 列出批量扫描的标的；为空时扫描库中全部 symbol。
// Interval 非空时（如 "1d"），serve 模式按该周期对齐定时扫描。
type ScanConfig struct {
	Symbols       []string `toml:"symbols"`
	Interval      string   `toml:"interval"`
	OffsetSeconds int      `toml:"offset_seconds"` // 周期边界后的延迟，等数据落库
}

// ReportConfig 控制图表产出。
type ReportConfig struct {
	OutputDir string `toml:"output_dir"`
	Chart     bool   `toml:"chart"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// StrategySettings 返回指定策略的设置；未配置时返回 nil（全量默认值）。
func (c *Config) StrategySettings(name string) map[string]any {
	for _, sc := range c.Strategies {
		if strings.EqualFold(strings.TrimSpace(sc.Name), name) {
			return sc.Settings
		}
	}
	return nil
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
