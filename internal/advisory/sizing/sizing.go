// Package sizing 按账户规模与单笔风险比例给出建议合约数。
// 仅供参考，不影响交易决策，也不下单。
package sizing

import (
	"fmt"
	"math"

	"theta-guard/internal/util/round"
)

// ContractMultiplier SPX 期权乘数：1.00 点 = 100 美元
const ContractMultiplier = 100.0

// DefaultMaxRiskPct 默认单笔风险比例 1%
const DefaultMaxRiskPct = 0.01

// ForwardTestNote 前向测试期间的手数提示
const ForwardTestNote = "Advisory: cap at 1 contract until at least 8 forward-test weeks are completed with this system."

// Recommendation 建议手数
type Recommendation struct {
	Contracts *int `json:"contracts"`
	// RiskBudget 账户可承受的风险金额（美元）
	RiskBudget *float64 `json:"risk_budget"`
	// RiskUsed 建议手数下的最大亏损（美元）
	RiskUsed        *float64     `json:"risk_used"`
	Detail          string       `json:"detail"`
	Valid           bool         `json:"valid"`
	ForwardTestNote string       `json:"forward_test_note,omitempty"`
	Risk            *RiskMetrics `json:"risk_metrics,omitempty"`
}

// RiskMetrics 给定手数下的总体风险
type RiskMetrics struct {
	TotalMaxLoss *float64 `json:"total_max_loss"`
	TotalCredit  *float64 `json:"total_credit"`
	// AccountRiskPct 总最大亏损占账户的百分比
	AccountRiskPct *float64 `json:"account_risk_pct"`
	RewardToRisk   *float64 `json:"reward_to_risk"`
	Valid          bool     `json:"valid"`
}

// Recommend 计算建议手数：floor(账户 × 风险比例 / (单手最大亏损 × 100))
// accountSize <= 0 表示未提供；maxRiskPct 必须在 (0,1]
func Recommend(accountSize, maxRiskPct float64, maxLossPerContract *float64) Recommendation {
	var rec Recommendation
	if !finite(accountSize) || accountSize <= 0 {
		rec.Detail = "Account size not provided. Set advisory.account_size to receive position sizing guidance."
		return rec
	}
	if !finite(maxRiskPct) || maxRiskPct <= 0 || maxRiskPct > 1 {
		rec.Detail = "Invalid risk percentage. Must be between 0 and 100%."
		return rec
	}
	if maxLossPerContract == nil || !finite(*maxLossPerContract) || *maxLossPerContract <= 0 {
		rec.Detail = "Max loss per contract unknown. Cannot compute position size without the maximum risk per spread."
		return rec
	}

	dollarsMaxLoss := *maxLossPerContract * ContractMultiplier
	budget := accountSize * maxRiskPct
	contracts := int(math.Max(0, math.Floor(budget/dollarsMaxLoss)))
	used := float64(contracts) * dollarsMaxLoss

	rec.Contracts = &contracts
	rec.RiskBudget = dollars(budget)
	rec.RiskUsed = dollars(used)
	rec.Valid = true
	rec.ForwardTestNote = ForwardTestNote

	if contracts == 0 {
		rec.Detail = fmt.Sprintf("Risk budget $%.2f is insufficient for the $%.2f max loss per contract. "+
			"Consider increasing account size or risk tolerance.", budget, dollarsMaxLoss)
	} else {
		rec.Detail = fmt.Sprintf("Based on $%.0f account and %.1f%% risk, you can trade up to %d contract(s). "+
			"Risk budget: $%.2f, Risk used: $%.2f.", accountSize, maxRiskPct*100, contracts, budget, used)
	}
	return rec
}

// Metrics 计算 contracts 手时的总亏损、总权利金、账户风险占比与收益风险比
func Metrics(accountSize float64, maxLossPerContract, netPremiumPerContract *float64, contracts int) RiskMetrics {
	var m RiskMetrics
	if contracts <= 0 {
		return m
	}
	n := float64(contracts)
	if maxLossPerContract != nil && finite(*maxLossPerContract) && *maxLossPerContract > 0 {
		m.TotalMaxLoss = dollars(n * *maxLossPerContract * ContractMultiplier)
		if finite(accountSize) && accountSize > 0 {
			m.AccountRiskPct = dollars(*m.TotalMaxLoss / accountSize * 100)
		}
	}
	if netPremiumPerContract != nil && finite(*netPremiumPerContract) {
		m.TotalCredit = dollars(n * *netPremiumPerContract * ContractMultiplier)
		if m.TotalMaxLoss != nil && *m.TotalMaxLoss > 0 {
			m.RewardToRisk = dollars(*m.TotalCredit / *m.TotalMaxLoss)
		}
	}
	m.Valid = true
	return m
}

// dollars 保留两位小数
func dollars(v float64) *float64 {
	r := round.To(v, 2)
	return &r
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
