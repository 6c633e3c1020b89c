package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// csv 导入布局：timestamp,open,high,low,close,volume。
// timestamp 接受 Unix ms、Unix s、2006-01-02 或 RFC3339。

// LoadCSV 读取单个 CSV 文件为指定 symbol 的升序序列。
func LoadCSV(path, symbol string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := ReadCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return bars, nil
}

// ReadCSV 从任意 reader 解析 OHLCV 行，首行为表头时自动跳过。
func ReadCSV(r io.Reader, symbol string) ([]Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	var bars []Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) < 6 {
			return nil, fmt.Errorf("第 %d 行字段不足: %d", line, len(record))
		}
		if line == 1 && looksLikeHeader(record[0]) {
			continue
		}
		ts, err := parseTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("第 %d 行时间戳无效: %w", line, err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("第 %d 行数值无效: %w", line, err)
			}
			vals[i] = v
		}
		bars = append(bars, Bar{
			Symbol: symbol,
			TS:     ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return SortBars(bars), nil
}

func looksLikeHeader(field string) bool {
	field = strings.ToLower(strings.TrimSpace(field))
	return field == "timestamp" || field == "date" || field == "time"
}

func parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("空时间戳")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// 13 位按毫秒处理，10 位按秒处理
		if n > 1_000_000_000_000 {
			return n, nil
		}
		return n * 1000, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("无法识别的时间格式: %s", raw)
}
