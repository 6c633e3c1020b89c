package backtest

// Summary 对已平仓账本的纯聚合。按 profit > 0 划分胜负（零视为亏损），
// 空分组的均值报 0 而非 NaN；可对同一账本重复计算，结果幂等。
type Summary struct {
	TotalTrades  int     `json:"total_trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`        // 百分比
	AvgGainPct   float64 `json:"avg_gain_pct"`    // 仅盈利分组
	AvgLossPct   float64 `json:"avg_loss_pct"`    // 仅亏损分组（通常为负值）
	AvgPctChange float64 `json:"avg_pct_change"`  // 全部成交
	RiskReward   float64 `json:"avg_risk_reward"` // 平均盈亏比，无亏损时为 0
}

// Summarize 从已平仓账本计算绩效汇总，不修改输入。
func Summarize(trades []ClosedPosition) Summary {
	var s Summary
	s.TotalTrades = len(trades)
	if s.TotalTrades == 0 {
		return s
	}
	var gainSum, lossSum, totalSum float64
	for _, t := range trades {
		totalSum += t.PctChange
		if t.Profit > 0 {
			s.Wins++
			gainSum += t.PctChange
		} else {
			s.Losses++
			lossSum += t.PctChange
		}
	}
	s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	if s.Wins > 0 {
		s.AvgGainPct = gainSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLossPct = lossSum / float64(s.Losses)
	}
	s.AvgPctChange = totalSum / float64(s.TotalTrades)
	if s.AvgLossPct < 0 {
		s.RiskReward = s.AvgGainPct / -s.AvgLossPct
	}
	return s
}
