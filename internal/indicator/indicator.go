package indicator

import "math"

// 本包内"未定义"一律用 NaN 表示：窗口未满、前置数据缺失时输出 NaN，
// 下游与 NaN 的比较恒为 false（条件不成立），不会 panic。

// SMA 简单移动平均。窗口未满（前 window-1 个）或窗口内含 NaN 时输出 NaN。
func SMA(series []float64, window int) []float64 {
	return rollingApply(series, window, func(win []float64) float64 {
		sum := 0.0
		for _, v := range win {
			sum += v
		}
		return sum / float64(len(win))
	})
}

// RollingMax 滚动最大值，窗口语义与 SMA 一致。
func RollingMax(series []float64, window int) []float64 {
	return rollingApply(series, window, func(win []float64) float64 {
		max := win[0]
		for _, v := range win[1:] {
			if v > max {
				max = v
			}
		}
		return max
	})
}

// rollingApply 对完整窗口应用 fn；窗口含 NaN 时直接输出 NaN。
func rollingApply(series []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || len(series) < window {
		return out
	}
	for i := window - 1; i < len(series); i++ {
		win := series[i-window+1 : i+1]
		valid := true
		for _, v := range win {
			if math.IsNaN(v) {
				valid = false
				break
			}
		}
		if valid {
			out[i] = fn(win)
		}
	}
	return out
}

// EMA 指数平滑，α = 2/(span+1)，以首个有效值为种子，之后按递推展开，
// 无预热空洞（种子之后每个点都有值）。
func EMA(series []float64, span int) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = math.NaN()
	}
	if span <= 0 || len(series) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	prev := math.NaN()
	for i, v := range series {
		if math.IsNaN(v) {
			// 保留已有均线值，输出延续上一点
			out[i] = prev
			continue
		}
		if math.IsNaN(prev) {
			prev = v
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// RSI Wilder 风格相对强弱指标：逐日差分拆成涨幅/跌幅，各取 period 滚动均值。
// 前 period 个样本未定义。avg_loss 为 0 且 avg_gain 为正时 rs=+Inf、rsi=100
// （全涨序列按"极强"处理）；avg_gain 与 avg_loss 同时为 0 时结果为 NaN。
func RSI(series []float64, period int) []float64 {
	n := len(series)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 || math.IsNaN(series[i]) || math.IsNaN(series[i-1]) {
			gains[i] = math.NaN()
			losses[i] = math.NaN()
			continue
		}
		delta := series[i] - series[i-1]
		if delta > 0 {
			gains[i] = delta
			losses[i] = 0
		} else {
			gains[i] = 0
			losses[i] = -delta
		}
	}
	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		rs := avgGain[i] / avgLoss[i] // 0/0=NaN、x/0=+Inf，两者都自然传播
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD 返回 macd 线（快慢 EMA 之差）与信号线（macd 的 EMA）。
func MACD(series []float64, fast, slow, signal int) (line, sig []float64) {
	emaFast := EMA(series, fast)
	emaSlow := EMA(series, slow)
	line = make([]float64, len(series))
	for i := range line {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig = EMA(line, signal)
	return line, sig
}

// TrueRange 单根 bar 的真实波幅；首根无前收盘，取 high-low。
func TrueRange(highs, lows, closes []float64) []float64 {
	n := len(highs)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		tr := highs[i] - lows[i]
		if i > 0 && !math.IsNaN(closes[i-1]) {
			if v := math.Abs(highs[i] - closes[i-1]); v > tr {
				tr = v
			}
			if v := math.Abs(lows[i] - closes[i-1]); v > tr {
				tr = v
			}
		}
		out[i] = tr
	}
	return out
}

// ATR 真实波幅的 period 滚动均值，窗口未满时未定义。
func ATR(highs, lows, closes []float64, period int) []float64 {
	return SMA(TrueRange(highs, lows, closes), period)
}

// Last 返回序列末值；空序列返回 NaN。
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// Defined 判断值是否有效（非 NaN 且非 Inf）。
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
