package model

// Outcome 单周交易结果
type Outcome string

const (
	// OutcomeWin 盈利（含持平）
	OutcomeWin Outcome = "WIN"
	// OutcomeLoss 亏损
	OutcomeLoss Outcome = "LOSS"
	// OutcomeSkipped 未交易或数据不足
	OutcomeSkipped Outcome = "SKIPPED"
)

// WeeklyOutcomeRecord 回测输入的单周记录
type WeeklyOutcomeRecord struct {
	// Week 周标识，如 2024-W10 或周一日期
	Week     string   `json:"week"`
	Decision Decision `json:"decision"`
	Outcome  Outcome  `json:"outcome"`
	PnL      float64  `json:"pnl"`
	// MaxLoss 该周结构的最大亏损，未知时为 nil
	MaxLoss *float64 `json:"max_loss,omitempty"`
}

// Traded 判断该周是否计入回测
func (r WeeklyOutcomeRecord) Traded() bool {
	return r.Decision == DecisionTradeAllowed && r.Outcome != OutcomeSkipped
}

// BacktestMetrics 回测汇总指标
// 所有浮点字段保留 4 位小数
type BacktestMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	Expectancy    float64 `json:"expectancy"`
	CumulativePnL float64 `json:"cumulative_pnl"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	ReturnOnRisk  float64 `json:"return_on_risk"`
}
