package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sygnal/internal/logger"
	"sygnal/internal/market"
)

// HistoryProvider 是核心对外的唯一数据边界：返回升序、按时间戳去重的序列。
// 空或过短的结果按数据不足处理，不是异常。
type HistoryProvider interface {
	Fetch(ctx context.Context, symbol string) ([]market.Bar, error)
}

// ResultSink 接收完成的回测结果用于持久化/上报，按产出顺序交付。
type ResultSink interface {
	Write(ctx context.Context, res Result) error
}

// Notifier 用于批量扫描完成后的推送。
type Notifier interface {
	SendText(text string) error
}

// Failure 记录批量扫描中单个 symbol 的失败原因。
type Failure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// BatchResult 汇总一次多 symbol 扫描：部分结果 + 失败清单。
type BatchResult struct {
	Results  []Result  `json:"results"`
	Failures []Failure `json:"failures"`
}

// RunnerConfig 配置批量扫描器。
type RunnerConfig struct {
	Provider      HistoryProvider
	Engine        *Engine
	Sink          ResultSink // 可选
	Notifier      Notifier   // 可选
	MaxConcurrent int
}

// Runner 跨 symbol 并行执行回测。各 symbol 的模拟彼此完全隔离
// （只读配置之外无共享可变状态），单个失败不会中断整批。
type Runner struct {
	provider HistoryProvider
	engine   *Engine
	sink     ResultSink
	notifier Notifier
	limit    int
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("history provider 不能为空")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine 不能为空")
	}
	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	return &Runner{
		provider: cfg.Provider,
		engine:   cfg.Engine,
		sink:     cfg.Sink,
		notifier: cfg.Notifier,
		limit:    limit,
	}, nil
}

// Run 扫描给定 symbol 列表。返回的 Results 按 symbol 排序，
// Failures 记录失败者及原因；仅当 ctx 取消时返回错误。
func (r *Runner) Run(ctx context.Context, symbols []string) (BatchResult, error) {
	var (
		mu    sync.Mutex
		batch BatchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, symbol := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		g.Go(func() error {
			res, err := r.runOne(gctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warnf("[batch] %s 回测失败: %v", symbol, err)
				batch.Failures = append(batch.Failures, Failure{Symbol: symbol, Reason: err.Error()})
				return nil
			}
			batch.Results = append(batch.Results, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}
	sort.Slice(batch.Results, func(i, j int) bool { return batch.Results[i].Symbol < batch.Results[j].Symbol })
	sort.Slice(batch.Failures, func(i, j int) bool { return batch.Failures[i].Symbol < batch.Failures[j].Symbol })
	r.notify(batch)
	return batch, nil
}

func (r *Runner) runOne(ctx context.Context, symbol string) (Result, error) {
	bars, err := r.provider.Fetch(ctx, symbol)
	if err != nil {
		return Result{}, fmt.Errorf("拉取历史失败: %w", err)
	}
	res, err := r.engine.Run(ctx, symbol, bars)
	if err != nil {
		return Result{}, err
	}
	if r.sink != nil {
		if err := r.sink.Write(ctx, res); err != nil {
			// 持久化失败不推翻模拟结果
			logger.Warnf("[batch] %s 结果写入失败: %v", symbol, err)
		}
	}
	return res, nil
}

func (r *Runner) notify(batch BatchResult) {
	if r.notifier == nil {
		return
	}
	trades := 0
	signals := 0
	for _, res := range batch.Results {
		trades += len(res.Trades)
		signals += len(res.Signals)
	}
	msg := fmt.Sprintf("*回测扫描完成*\nsymbols : %d\nsignals : %d\ntrades  : %d\nfailed  : %d",
		len(batch.Results)+len(batch.Failures), signals, trades, len(batch.Failures))
	if err := r.notifier.SendText(msg); err != nil {
		logger.Warnf("批量通知失败: %v", err)
	}
}
