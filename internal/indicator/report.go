package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"sygnal/internal/market"
)

// ReportSettings 描述审计报告所需的最小配置。
type ReportSettings struct {
	Symbol string
	RSI    int
	ATR    int
}

// Value 保存单个指标的最新值与状态，供信号审计展示。
type Value struct {
	Latest float64 `json:"latest"`
	State  string  `json:"state,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// Report 汇总单个 symbol 的扩展指标快照。回测核心不依赖它，
// 仅用于 HTTP 层对运行结果的人工审计。
type Report struct {
	Symbol string           `json:"symbol"`
	Count  int              `json:"count"`
	Values map[string]Value `json:"values"`
}

// ComputeReport 基于 talib 计算扩展指标快照（ROC、随机指标、Williams %R、OBV 等）。
// 核心策略不使用这些值，语义差异（talib 的 EMA 种子、Wilder RSI）在这里无关紧要。
func ComputeReport(bars []market.Bar, cfg ReportSettings) (Report, error) {
	rep := Report{
		Symbol: cfg.Symbol,
		Count:  len(bars),
		Values: make(map[string]Value),
	}
	if len(bars) == 0 {
		return rep, fmt.Errorf("no bars")
	}
	if cfg.RSI <= 0 {
		cfg.RSI = 14
	}
	if cfg.ATR <= 0 {
		cfg.ATR = 14
	}
	highs, lows, closes := market.HLC(bars)
	volumes := market.Volumes(bars)

	rsi := lastValid(talib.Rsi(closes, cfg.RSI))
	state := "neutral"
	switch {
	case rsi >= 70:
		state = "overbought"
	case rsi <= 30:
		state = "oversold"
	}
	rep.Values["rsi"] = Value{Latest: rsi, State: state, Note: fmt.Sprintf("period=%d", cfg.RSI)}

	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	macdState := "flat"
	switch {
	case lastValid(hist) > 0:
		macdState = "bullish"
	case lastValid(hist) < 0:
		macdState = "bearish"
	}
	rep.Values["macd"] = Value{
		Latest: lastValid(macd),
		State:  macdState,
		Note:   fmt.Sprintf("signal=%.4f hist=%.4f", lastValid(signal), lastValid(hist)),
	}

	roc := lastValid(talib.Roc(closes, 9))
	rep.Values["roc"] = Value{Latest: roc, State: polarityState(roc), Note: "period=9"}

	k, d := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	rep.Values["stoch_k"] = Value{
		Latest: lastValid(k),
		State:  stochasticState(lastValid(k)),
		Note:   fmt.Sprintf("d=%.2f", lastValid(d)),
	}

	will := lastValid(talib.WillR(highs, lows, closes, 14))
	rep.Values["williams_r"] = Value{Latest: will, State: stochasticState(-will), Note: "period=14"}

	atr := lastValid(talib.Atr(highs, lows, closes, cfg.ATR))
	rep.Values["atr"] = Value{Latest: atr, State: "volatility", Note: fmt.Sprintf("period=%d", cfg.ATR)}

	obv := lastValid(talib.Obv(closes, volumes))
	rep.Values["obv"] = Value{Latest: obv, State: polarityState(roc), Note: "volume thrust"}

	return rep, nil
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func polarityState(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "flat"
	}
}

func stochasticState(v float64) string {
	switch {
	case v >= 80:
		return "overbought"
	case v <= 20:
		return "oversold"
	default:
		return "neutral"
	}
}
