package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sygnal/internal/backtest"
	"sygnal/internal/config"
	"sygnal/internal/logger"
	"sygnal/internal/market"
	"sygnal/internal/notify"
	"sygnal/internal/report"
	"sygnal/internal/scheduler"
	"sygnal/internal/strategy"
	httpapi "sygnal/internal/transport/http"
)

// App 把配置装配成可运行的各个组件：历史/结果存储、策略与引擎、
// 批量扫描器以及 HTTP 服务。
type App struct {
	cfg     *config.Config
	history *market.Store
	results *backtest.ResultStore
	engine  *backtest.Engine
	svc     *backtest.Service
	runner  *backtest.Runner
	server  *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	history, err := market.NewStore(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("初始化历史存储失败: %w", err)
	}
	results, err := backtest.NewResultStore(cfg.Data.Root)
	if err != nil {
		history.Close()
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}

	engCfg := engineConfig(cfg.Backtest)
	strat, err := strategy.New(cfg.Backtest.Strategy, cfg.StrategySettings(cfg.Backtest.Strategy))
	if err != nil {
		history.Close()
		results.Close()
		return nil, err
	}
	engine, err := backtest.NewEngine(strat, engCfg)
	if err != nil {
		history.Close()
		results.Close()
		return nil, err
	}

	svc, err := backtest.NewService(backtest.ServiceConfig{
		History:         history,
		Results:         results,
		Defaults:        engCfg,
		DefaultStrategy: cfg.Backtest.Strategy,
		Settings:        cfg.StrategySettings,
	})
	if err != nil {
		history.Close()
		results.Close()
		return nil, err
	}

	var notifier backtest.Notifier
	if cfg.Notify.Telegram.Enabled {
		notifier = notify.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}
	runner, err := backtest.NewRunner(backtest.RunnerConfig{
		Provider:      history,
		Engine:        engine,
		Sink:          results,
		Notifier:      notifier,
		MaxConcurrent: cfg.Backtest.MaxConcurrent,
	})
	if err != nil {
		history.Close()
		results.Close()
		return nil, err
	}

	server, err := httpapi.NewServer(httpapi.Config{
		Addr:    cfg.App.HTTPAddr,
		Service: svc,
		History: history,
		Results: results,
	})
	if err != nil {
		history.Close()
		results.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		history: history,
		results: results,
		engine:  engine,
		svc:     svc,
		runner:  runner,
		server:  server,
	}, nil
}

func engineConfig(b config.BacktestConfig) backtest.EngineConfig {
	var entryTypes []strategy.SignalType
	for _, t := range b.EntryTypes {
		entryTypes = append(entryTypes, strategy.SignalType(strings.ToUpper(strings.TrimSpace(t))))
	}
	return backtest.EngineConfig{
		Policy:     backtest.PositionPolicy(strings.ToLower(strings.TrimSpace(b.Policy))),
		EntryGuard: b.EntryGuard,
		MinHistory: b.MinHistory,
		WarmupBars: b.WarmupBars,
		EntryTypes: entryTypes,
	}
}

// ImportCSVDir 把配置目录下的 *.csv 批量导入历史存储，
// 文件名（去扩展名、大写）作为 symbol。目录未配置时为空操作。
func (a *App) ImportCSVDir(ctx context.Context) error {
	dir := strings.TrimSpace(a.cfg.Data.CSVDir)
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("读取 CSV 目录失败: %w", err)
	}
	files := 0
	total := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		bars, err := market.LoadCSV(filepath.Join(dir, entry.Name()), symbol)
		if err != nil {
			return err
		}
		n, err := a.history.UpsertBars(ctx, bars)
		if err != nil {
			return fmt.Errorf("导入 %s 失败: %w", symbol, err)
		}
		files++
		total += n
	}
	logger.Infof("CSV 导入完成: %d 个文件, 新增 %d 条", files, total)
	return nil
}

// Scan 对给定 symbol 列表批量回测；列表为空时依次回退到
// 配置的 scan.symbols、再到库中全部 symbol。按配置产出 HTML 图表。
func (a *App) Scan(ctx context.Context, symbols []string) (backtest.BatchResult, error) {
	if len(symbols) == 0 {
		symbols = a.cfg.Scan.Symbols
	}
	if len(symbols) == 0 {
		var err error
		symbols, err = a.history.Symbols(ctx)
		if err != nil {
			return backtest.BatchResult{}, err
		}
	}
	if len(symbols) == 0 {
		return backtest.BatchResult{}, fmt.Errorf("无可扫描的 symbol（先导入历史数据）")
	}
	batch, err := a.runner.Run(ctx, symbols)
	if err != nil {
		return backtest.BatchResult{}, err
	}
	if a.cfg.Report.Chart {
		a.writeCharts(ctx, batch)
	}
	return batch, nil
}

func (a *App) writeCharts(ctx context.Context, batch backtest.BatchResult) {
	for _, res := range batch.Results {
		if res.Outcome != backtest.OutcomeCompleted {
			continue
		}
		bars, err := a.history.Fetch(ctx, res.Symbol)
		if err != nil {
			logger.Warnf("%s 图表数据读取失败: %v", res.Symbol, err)
			continue
		}
		path, err := report.WriteChart(a.cfg.Report.OutputDir, res, bars)
		if err != nil {
			logger.Warnf("%s 图表生成失败: %v", res.Symbol, err)
			continue
		}
		logger.Infof("图表已输出: %s", path)
	}
}

// Serve 启动 HTTP 服务并（若配置了 scan.interval）拉起对齐定时扫描，
// 阻塞直到 ctx 取消。
func (a *App) Serve(ctx context.Context) error {
	if interval, ok := scheduler.ParseIntervalDuration(a.cfg.Scan.Interval); ok {
		offset := time.Duration(a.cfg.Scan.OffsetSeconds) * time.Second
		sched := scheduler.NewAlignedScheduler(ctx, interval, offset)
		go sched.Start(func() {
			if _, err := a.Scan(ctx, nil); err != nil && ctx.Err() == nil {
				logger.Warnf("定时扫描失败: %v", err)
			}
		})
	}
	return a.server.Start(ctx)
}

// Close 释放全部持久化资源。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.results != nil {
		_ = a.results.Close()
	}
	if a.history != nil {
		_ = a.history.Close()
	}
}
