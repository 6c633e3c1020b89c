package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sygnal/internal/market"
)

// SignalType 标识信号分类。WATCH 为观察级（信息性），其余为可操作级。
type SignalType string

const (
	SignalWatch   SignalType = "WATCH"
	SignalAlert   SignalType = "ALERT"
	SignalBuy     SignalType = "BUY"
	SignalSell    SignalType = "SELL"
	SignalUptrend SignalType = "UPTREND"
)

// Signal 是策略对某一天的产出，每个模拟日重新生成，引擎不持久化。
type Signal struct {
	Symbol        string         `json:"symbol"`
	Type          SignalType     `json:"signal_type"`
	Strategy      string         `json:"strategy"`
	Price         float64        `json:"price"`         // 信号日收盘价
	Trigger       float64        `json:"trigger_entry"` // 入场触发价（0 表示无触发约束）
	StopLoss      float64        `json:"stop_loss"`
	Target        float64        `json:"target"`
	ConditionsMet int            `json:"conditions_met"`
	Details       map[string]any `json:"details,omitempty"`
}

// Request 携带 symbol 与因果受限的历史窗口：bars 以模拟当日收盘为界，
// 由引擎显式传入，策略不得通过其它途径读取未来数据。
type Request struct {
	Symbol string
	Bars   []market.Bar
}

// Strategy 是引擎依赖的唯一能力：对给定窗口产出 0 或 1 个信号。
// 实现必须无状态（设置除外），同一窗口重复调用结果一致。
type Strategy interface {
	Name() string
	MinBars() int
	Analyze(ctx context.Context, req Request) (*Signal, error)
}

// Factory 以原始设置构造策略实例，设置缺省项由实现补全。
type Factory func(settings map[string]any) (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register 注册策略构造器，启动期静态注册，重复注册视为编程错误。
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("strategy %q 已注册", name))
	}
	registry[name] = factory
}

// New 按名字构造策略，未注册的名字返回错误（配置错误，调用方需快速失败）。
func New(name string, settings map[string]any) (Strategy, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("未知策略: %s（可用: %v）", name, Names())
	}
	return factory(settings)
}

// Names 返回已注册策略名（排序后）。
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
