package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"sygnal/internal/backtest"
	"sygnal/internal/market"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorEntry         = "#3b82f6"
	colorExitStop      = "#fb7185"
	colorExitTarget    = "#fbbf24"
	colorEquity        = "#22d3ee"

	chartWidthPx   = 1600
	klineHeightPx  = 600
	equityHeightPx = 300
)

// WriteChart 把单 symbol 回测结果渲染为自包含 HTML：K 线 + 进出场标记 + 权益曲线。
// 输出文件名为 <symbol>_<strategy>.html。
func WriteChart(dir string, res backtest.Result, bars []market.Bar) (string, error) {
	if len(bars) == 0 {
		return "", fmt.Errorf("%s 无可渲染数据", res.Symbol)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildKlineChart(res, bars), buildEquityChart(res))

	name := fmt.Sprintf("%s_%s.html", strings.ToLower(res.Symbol), res.Strategy)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return "", fmt.Errorf("渲染图表失败: %w", err)
	}
	return path, nil
}

func buildKlineChart(res backtest.Result, bars []market.Bar) *charts.Kline {
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", strings.ToUpper(res.Symbol), res.Strategy),
			Subtitle:      summarySubtitle(res.Summary),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	xAxis := buildXAxis(bars)
	data := make([]opts.KlineData, 0, len(bars))
	for _, b := range bars {
		data = append(data, opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", data)

	kline.Overlap(buildTradeMarkers(res, xAxis, len(bars)))
	return kline
}

// buildTradeMarkers 用散点覆盖层标出每笔成交的入场与出场位置。
func buildTradeMarkers(res backtest.Result, xAxis []string, n int) *charts.Scatter {
	entries := make([]opts.ScatterData, n)
	stops := make([]opts.ScatterData, n)
	targets := make([]opts.ScatterData, n)
	for i := 0; i < n; i++ {
		entries[i] = opts.ScatterData{Value: nil}
		stops[i] = opts.ScatterData{Value: nil}
		targets[i] = opts.ScatterData{Value: nil}
	}
	for _, t := range res.Trades {
		if t.EntryIndex >= 0 && t.EntryIndex < n {
			entries[t.EntryIndex] = opts.ScatterData{Value: round(t.EntryPrice, 4), Symbol: "triangle", SymbolSize: 12}
		}
		if t.ExitIndex >= 0 && t.ExitIndex < n {
			mark := opts.ScatterData{Value: round(t.ExitPrice, 4), Symbol: "diamond", SymbolSize: 12}
			if t.ExitReason == backtest.ExitReasonStopLoss {
				stops[t.ExitIndex] = mark
			} else {
				targets[t.ExitIndex] = mark
			}
		}
	}
	scatter := charts.NewScatter()
	scatter.SetXAxis(xAxis)
	scatter.AddSeries("Entry", entries, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorEntry}))
	scatter.AddSeries("Stop", stops, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorExitStop}))
	scatter.AddSeries("Target", targets, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorExitTarget}))
	return scatter
}

// buildEquityChart 以每笔平仓的累计涨跌幅画权益曲线。
func buildEquityChart(res backtest.Result) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", equityHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Cumulative PnL %", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	x := make([]string, 0, len(res.Trades))
	data := make([]opts.LineData, 0, len(res.Trades))
	cum := 0.0
	for _, t := range res.Trades {
		cum += t.PctChange
		x = append(x, time.UnixMilli(t.ExitTS).UTC().Format("2006-01-02"))
		data = append(data, opts.LineData{Value: round(cum, 4)})
	}
	line.SetXAxis(x)
	line.AddSeries("PnL", data,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
	)
	return line
}

func summarySubtitle(s backtest.Summary) string {
	return fmt.Sprintf("trades %d | win %.1f%% | avg gain %.2f%% | avg loss %.2f%% | rr %.2f",
		s.TotalTrades, s.WinRate, s.AvgGainPct, s.AvgLossPct, s.RiskReward)
}

func buildXAxis(bars []market.Bar) []string {
	x := make([]string, len(bars))
	for i, b := range bars {
		x[i] = time.UnixMilli(b.TS).UTC().Format("2006-01-02")
	}
	return x
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
