package model

// Decision 周度入场决策
type Decision string

const (
	// DecisionTradeAllowed 允许开仓
	DecisionTradeAllowed Decision = "TRADE_ALLOWED"
	// DecisionNoTrade 不开仓
	DecisionNoTrade Decision = "NO_TRADE"
)

// EntryDecision 入场决策结果
// 每周一个，完全由三个输入决定
type EntryDecision struct {
	// Decision 最终决策
	Decision Decision `json:"decision"`
	// HardBlocks 触发的硬性阻断标签
	HardBlocks []string `json:"hard_blocks_triggered"`
	// SignalFailures 未满足的信号条件标签
	SignalFailures []string `json:"signal_failures"`
	// Reasons 按评估顺序排列的说明
	Reasons []string `json:"reasons"`
}

// Allowed 判断是否允许开仓
func (d *EntryDecision) Allowed() bool {
	return d != nil && d.Decision == DecisionTradeAllowed
}

// Summary 返回一行摘要，用于日志与周记
func (d *EntryDecision) Summary() string {
	if d == nil {
		return "Pipeline result missing"
	}
	if d.Allowed() {
		return "All conditions met"
	}
	if len(d.Reasons) > 0 {
		return d.Reasons[0]
	}
	return "Unknown block reason"
}
