package market

import (
	"fmt"
	"sort"
)

// Bar 表示单个 symbol 在某个时间点的 OHLCV 观测，入库后不可变。
type Bar struct {
	Symbol string  `json:"symbol"`
	TS     int64   `json:"ts"` // Unix ms，同一 symbol 内严格递增
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Turnover 返回该 bar 的成交额（价格 × 成交量），用作流动性代理。
func (b Bar) Turnover() float64 {
	return b.Close * b.Volume
}

// SortBars 按时间升序排序并按时间戳去重（保留先出现的记录）。
func SortBars(bars []Bar) []Bar {
	if len(bars) < 2 {
		return bars
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].TS < bars[j].TS })
	out := bars[:1]
	for _, b := range bars[1:] {
		if b.TS == out[len(out)-1].TS {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ValidateAscending 校验序列按时间严格递增，回测引擎在模拟前要求该前置条件。
func ValidateAscending(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].TS <= bars[i-1].TS {
			return fmt.Errorf("bars 未按时间严格递增: index=%d ts=%d prev=%d", i, bars[i].TS, bars[i-1].TS)
		}
	}
	return nil
}

// Closes 提取收盘价序列。
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes 提取成交量序列。
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// HLC 提取 high/low/close 三个序列，供 ATR 等指标使用。
func HLC(bars []Bar) (highs, lows, closes []float64) {
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	closes = make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	return highs, lows, closes
}
