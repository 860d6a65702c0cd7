// Package paper 在到期日按结算价对模拟持仓进行结算。
// 重要：仅用于研究，严禁真实下单。
package paper

import (
	"fmt"
	"math"

	"theta-guard/internal/core/model"
	"theta-guard/internal/util/round"
)

// Settlement 单个结构的到期结算结果
type Settlement struct {
	// PnL 每手结构的盈亏（已保留 4 位小数）
	PnL     float64       `json:"pnl"`
	Outcome model.Outcome `json:"outcome"`
	// Valid 为 false 时 Outcome 为 SKIPPED
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

type legKey struct {
	kind   model.OptionKind
	strike float64
}

// Settle 按到期结算价计算结构盈亏
// 卖出腿: (入场价 - 结算价) × 数量；买入腿: (结算价 - 入场价) × 数量。
// 盈亏 >= 0 记为 WIN。入场价已包含净权利金，这里不再额外加回。
func Settle(structure model.BWBStructure, settlements []model.SettlementRecord) (res Settlement) {
	defer func() {
		if r := recover(); r != nil {
			res = skipped(fmt.Sprintf("Settlement failed: %v", r))
		}
	}()

	if !structure.Valid || len(structure.Legs) == 0 {
		return skipped("Structure not tradable, nothing to settle.")
	}
	if len(settlements) == 0 {
		return skipped("No settlement prices available.")
	}

	prices := make(map[legKey]float64, len(settlements))
	for _, s := range settlements {
		if s.SettlementPrice == nil {
			continue
		}
		px := *s.SettlementPrice
		if math.IsNaN(px) || math.IsInf(px, 0) || px < 0 {
			continue
		}
		k := legKey{kind: s.Kind, strike: s.Strike}
		// 同一行权价重复出现时取第一条
		if _, seen := prices[k]; !seen {
			prices[k] = px
		}
	}

	var pnl float64
	for _, leg := range structure.Legs {
		px, ok := prices[legKey{kind: leg.Kind, strike: leg.Strike}]
		if !ok {
			return skipped(fmt.Sprintf("Missing settlement price for %s %v.", leg.Kind, leg.Strike))
		}
		qty := float64(leg.Quantity)
		switch leg.Side {
		case model.SideSell:
			pnl += (leg.Price - px) * qty
		case model.SideBuy:
			pnl += (px - leg.Price) * qty
		default:
			return skipped(fmt.Sprintf("Unknown leg side: %s", leg.Side))
		}
	}

	pnl = round.Round4(pnl)
	outcome := model.OutcomeWin
	if pnl < 0 {
		outcome = model.OutcomeLoss
	}
	return Settlement{
		PnL:     pnl,
		Outcome: outcome,
		Valid:   true,
		Reason:  fmt.Sprintf("Settled %s at expiration: pnl %.2f (%s).", structure.Type, pnl, outcome),
	}
}

func skipped(reason string) Settlement {
	return Settlement{Outcome: model.OutcomeSkipped, Reason: reason}
}
