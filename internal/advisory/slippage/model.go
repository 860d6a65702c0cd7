// Package slippage 估算成交滑点对权利金与最大亏损的影响。
// 仅供参考，不影响交易决策。
package slippage

import (
	"fmt"
	"math"

	"theta-guard/internal/util/round"
)

// DefaultPcts 默认滑点情景
var DefaultPcts = []float64{0, 0.05, 0.10, 0.15}

// Result 单一滑点情景
type Result struct {
	Pct             float64  `json:"slippage_pct"`
	CreditMid       *float64 `json:"credit_mid"`
	CreditAdjusted  *float64 `json:"credit_adjusted"`
	MaxLossMid      *float64 `json:"max_loss_mid"`
	MaxLossAdjusted *float64 `json:"max_loss_adjusted"`
	Valid           bool     `json:"valid"`
}

// Analysis 多情景分析
type Analysis struct {
	// Scenarios 键形如 "5pct"
	Scenarios map[string]Result `json:"scenarios"`
	// Order 情景键的输入顺序
	Order []string `json:"order"`
	Valid bool     `json:"valid"`
}

// Key 返回滑点比例对应的情景键，如 0.05 -> "5pct"
func Key(pct float64) string {
	return fmt.Sprintf("%dpct", int(math.Round(pct*100)))
}

// Apply 计算单一滑点情景
// 滑点按比例减少收取的权利金，并以同等金额增加最大亏损；pct 被限制在 [0,1]
func Apply(netPremium, maxLoss *float64, pct float64) Result {
	if math.IsNaN(pct) {
		pct = 0
	}
	pct = math.Max(0, math.Min(1, pct))
	res := Result{Pct: pct}
	if netPremium == nil || maxLoss == nil {
		return res
	}
	credit, loss := *netPremium, *maxLoss
	if !finite(credit) || !finite(loss) {
		return res
	}

	adj := credit * (1 - pct)
	cost := credit - adj

	res.CreditMid = round.Ptr(&credit)
	res.CreditAdjusted = round.Ptr(&adj)
	res.MaxLossMid = round.Ptr(&loss)
	lossAdj := loss + cost
	res.MaxLossAdjusted = round.Ptr(&lossAdj)
	res.Valid = true
	return res
}

// Analyze 计算多个滑点情景；pcts 为空时使用 DefaultPcts
func Analyze(netPremium, maxLoss *float64, pcts []float64) Analysis {
	if len(pcts) == 0 {
		pcts = DefaultPcts
	}
	a := Analysis{Scenarios: make(map[string]Result, len(pcts))}
	if netPremium == nil || maxLoss == nil {
		return a
	}
	allValid := true
	for _, p := range pcts {
		r := Apply(netPremium, maxLoss, p)
		k := Key(p)
		if _, dup := a.Scenarios[k]; !dup {
			a.Order = append(a.Order, k)
		}
		a.Scenarios[k] = r
		if !r.Valid {
			allValid = false
		}
	}
	a.Valid = allValid && len(a.Scenarios) > 0
	return a
}

// CreditAt 返回指定情景的调整后权利金，缺失时为 nil
func (a Analysis) CreditAt(pct float64) *float64 {
	if r, ok := a.Scenarios[Key(pct)]; ok {
		return r.CreditAdjusted
	}
	return nil
}

// MaxLossAt 返回指定情景的调整后最大亏损，缺失时为 nil
func (a Analysis) MaxLossAt(pct float64) *float64 {
	if r, ok := a.Scenarios[Key(pct)]; ok {
		return r.MaxLossAdjusted
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
