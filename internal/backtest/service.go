package backtest

import (
	"context"
	"fmt"
	"strings"

	"sygnal/internal/strategy"
)

// SettingsFunc 按策略名提供配置文件中的设置；返回 nil 表示全量默认值。
type SettingsFunc func(name string) map[string]any

// ServiceConfig 描述 Service 的依赖。
type ServiceConfig struct {
	History         HistoryProvider
	Results         *ResultStore // 可选，为空时结果不落库
	Defaults        EngineConfig
	DefaultStrategy string
	Settings        SettingsFunc // 可选
}

// Service 面向 HTTP/CLI 编排单次回测的完整生命周期：
// 构造策略与引擎、拉取历史、执行模拟、推进持久化记录的状态。
type Service struct {
	history  HistoryProvider
	results  *ResultStore
	defaults EngineConfig
	defName  string
	settings SettingsFunc
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.History == nil {
		return nil, fmt.Errorf("history provider 不能为空")
	}
	if strings.TrimSpace(cfg.DefaultStrategy) == "" {
		return nil, fmt.Errorf("默认策略不能为空")
	}
	return &Service{
		history:  cfg.History,
		results:  cfg.Results,
		defaults: cfg.Defaults,
		defName:  cfg.DefaultStrategy,
		settings: cfg.Settings,
	}, nil
}

// RunRequest 是一次按需回测的参数；未给出的字段沿用服务默认值。
type RunRequest struct {
	Symbol     string         `json:"symbol" binding:"required"`
	Strategy   string         `json:"strategy"`
	Settings   map[string]any `json:"settings"`
	Policy     string         `json:"policy"`
	EntryGuard *bool          `json:"entry_guard"`
}

// Run 同步执行一次回测并返回持久化记录与完整结果。
// 历史不足产出 insufficient_history 结果；执行失败时记录转入 failed 状态。
func (s *Service) Run(ctx context.Context, req RunRequest) (Run, Result, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return Run{}, Result{}, fmt.Errorf("symbol 不能为空")
	}
	name := strings.TrimSpace(req.Strategy)
	if name == "" {
		name = s.defName
	}
	settings := s.mergeSettings(name, req.Settings)
	strat, err := strategy.New(name, settings)
	if err != nil {
		return Run{}, Result{}, err
	}
	engCfg := s.defaults
	if p := strings.ToLower(strings.TrimSpace(req.Policy)); p != "" {
		engCfg.Policy = PositionPolicy(p)
	}
	if req.EntryGuard != nil {
		engCfg.EntryGuard = *req.EntryGuard
	}
	engine, err := NewEngine(strat, engCfg)
	if err != nil {
		return Run{}, Result{}, err
	}

	run := NewRun(symbol, name)
	if s.results != nil {
		if err := s.results.InsertRun(ctx, run); err != nil {
			return Run{}, Result{}, err
		}
		if err := s.results.UpdateRunStatus(ctx, run.ID, RunStatusRunning, ""); err != nil {
			return Run{}, Result{}, err
		}
		run.Status = RunStatusRunning
	}

	res, err := s.execute(ctx, engine, symbol)
	if err != nil {
		if s.results != nil && ctx.Err() == nil {
			_ = s.results.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, RunStatusFailed, err.Error())
		}
		return Run{}, Result{}, err
	}
	if s.results != nil {
		if err := s.results.SaveResult(ctx, run.ID, res); err != nil {
			return Run{}, Result{}, err
		}
		saved, err := s.results.GetRun(ctx, run.ID)
		if err != nil {
			return Run{}, Result{}, err
		}
		return saved, res, nil
	}
	run.Status = RunStatusDone
	run.Outcome = res.Outcome
	run.Bars = res.Bars
	run.SignalCount = len(res.Signals)
	run.TradeCount = len(res.Trades)
	run.OpenDiscarded = res.OpenDiscarded
	run.SkippedEntries = res.SkippedEntries
	run.Summary = res.Summary
	return run, res, nil
}

func (s *Service) execute(ctx context.Context, engine *Engine, symbol string) (Result, error) {
	bars, err := s.history.Fetch(ctx, symbol)
	if err != nil {
		return Result{}, fmt.Errorf("拉取历史失败: %w", err)
	}
	return engine.Run(ctx, symbol, bars)
}

// mergeSettings 把请求内联设置覆盖到配置文件设置之上。
func (s *Service) mergeSettings(name string, override map[string]any) map[string]any {
	var base map[string]any
	if s.settings != nil {
		base = s.settings(name)
	}
	if len(override) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
