// Package quality 检查拟入场结构的成交质量：点差、中间价、流动性、Delta、权利金与最大亏损。
// 只读清单，不影响交易决策。
package quality

import (
	"fmt"
	"strings"

	"theta-guard/internal/core/model"
)

// Status 检查结果
type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
	StatusNA   Status = "N/A"
)

// 阈值（SPX 期权点数）
const (
	TightSpread     = 0.50
	ModerateSpread  = 1.00
	MinOpenInterest = 200
	MinVolume       = 50
	MinCredit       = 1.50
	MaxLossCap      = 3.50
)

// Check 单项检查
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

// Report 成交质量清单；任一 FAIL 则整体 FAIL，否则任一 WARN 则整体 WARN
type Report struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks"`
	Valid  bool    `json:"valid"`
}

type chainKey struct {
	strike float64
	kind   model.OptionKind
}

// Evaluate 对结构的每条腿做点差、中间价、流动性与 Delta 检查，再检查净权利金与最大亏损
func Evaluate(chain []model.OptionRecord, s *model.BWBStructure) Report {
	rep := Report{Status: StatusNA, Checks: []Check{}}
	if s == nil || !s.Valid {
		rep.Checks = append(rep.Checks, Check{"structure_valid", StatusFail, "BWB structure is invalid or missing."})
		return rep
	}
	if len(s.Legs) == 0 {
		rep.Checks = append(rep.Checks, Check{"legs_present", StatusFail, "No legs found in BWB structure."})
		return rep
	}

	byKey := make(map[chainKey]model.OptionRecord, len(chain))
	for _, r := range chain {
		byKey[chainKey{r.Strike, r.Kind}] = r
	}

	for _, leg := range s.Legs {
		var opt *model.OptionRecord
		if r, ok := byKey[chainKey{leg.Strike, leg.Kind}]; ok {
			opt = &r
		}
		rep.Checks = append(rep.Checks,
			spreadCheck(leg, opt),
			midCheck(leg, opt),
			liquidityCheck(leg, opt),
			deltaCheck(leg),
		)
	}
	rep.Checks = append(rep.Checks, creditCheck(s), maxLossCheck(s))
	rep.Status = overall(rep.Checks)
	rep.Valid = true
	return rep
}

func strikeLabel(k float64) string {
	return fmt.Sprintf("%g", k)
}

func spreadCheck(leg model.Leg, opt *model.OptionRecord) Check {
	k := strikeLabel(leg.Strike)
	c := Check{Name: "spread_" + k}
	if opt == nil {
		c.Status, c.Detail = StatusWarn, fmt.Sprintf("Strike %s: no chain data to verify spread.", k)
		return c
	}
	spread := opt.Ask - opt.Bid
	switch {
	case spread <= TightSpread:
		c.Status, c.Detail = StatusPass, fmt.Sprintf("Strike %s: spread $%.2f (tight)", k, spread)
	case spread <= ModerateSpread:
		c.Status, c.Detail = StatusWarn, fmt.Sprintf("Strike %s: spread $%.2f (moderate)", k, spread)
	default:
		c.Status, c.Detail = StatusFail, fmt.Sprintf("Strike %s: spread $%.2f (wide)", k, spread)
	}
	return c
}

// midCheck 买价高于卖价（倒挂）时中间价不在区间内
func midCheck(leg model.Leg, opt *model.OptionRecord) Check {
	k := strikeLabel(leg.Strike)
	c := Check{Name: "mid_sanity_" + k}
	if opt == nil {
		c.Status, c.Detail = StatusWarn, fmt.Sprintf("Strike %s: no chain data for mid check.", k)
		return c
	}
	mid := opt.Mid()
	if opt.Bid <= mid && mid <= opt.Ask {
		c.Status, c.Detail = StatusPass, fmt.Sprintf("Strike %s: mid $%.2f valid.", k, mid)
	} else {
		c.Status, c.Detail = StatusFail, fmt.Sprintf("Strike %s: mid $%.2f outside bid/ask.", k, mid)
	}
	return c
}

func liquidityCheck(leg model.Leg, opt *model.OptionRecord) Check {
	k := strikeLabel(leg.Strike)
	c := Check{Name: "liquidity_" + k}
	if opt == nil {
		c.Status, c.Detail = StatusWarn, fmt.Sprintf("Strike %s: no chain data for liquidity check.", k)
		return c
	}
	if opt.Volume == nil && opt.OpenInterest == nil {
		c.Status, c.Detail = StatusWarn, fmt.Sprintf("Strike %s: volume/OI data not available.", k)
		return c
	}
	var vol, oi int64
	if opt.Volume != nil {
		vol = *opt.Volume
	}
	if opt.OpenInterest != nil {
		oi = *opt.OpenInterest
	}
	if oi >= MinOpenInterest || vol >= MinVolume {
		c.Status, c.Detail = StatusPass, fmt.Sprintf("Strike %s: OI=%d, Vol=%d (liquid)", k, oi, vol)
	} else {
		c.Status, c.Detail = StatusWarn, fmt.Sprintf("Strike %s: OI=%d, Vol=%d (thin)", k, oi, vol)
	}
	return c
}

func deltaCheck(leg model.Leg) Check {
	k := strikeLabel(leg.Strike)
	if leg.Delta == nil {
		return Check{"delta_" + k, StatusWarn, fmt.Sprintf("Strike %s: delta missing.", k)}
	}
	return Check{"delta_" + k, StatusPass, fmt.Sprintf("Strike %s: delta=%.3f", k, *leg.Delta)}
}

// creditCheck 仅对信用结构（类型含 CREDIT 或净权利金为正）要求净权利金 >= 1.50
func creditCheck(s *model.BWBStructure) Check {
	const name = "credit_threshold"
	isCredit := strings.Contains(strings.ToUpper(string(s.Type)), "CREDIT") || s.NetPremium > 0
	switch {
	case !isCredit:
		return Check{name, StatusPass, "Debit structure, credit threshold not applicable."}
	case s.NetPremium >= MinCredit:
		return Check{name, StatusPass, fmt.Sprintf("Net credit $%.2f meets threshold.", s.NetPremium)}
	default:
		return Check{name, StatusWarn, fmt.Sprintf("Net credit $%.2f below $%.2f threshold.", s.NetPremium, MinCredit)}
	}
}

func maxLossCheck(s *model.BWBStructure) Check {
	const name = "max_loss_cap"
	switch {
	case s.MaxLoss == nil:
		return Check{name, StatusWarn, "Max loss unknown."}
	case *s.MaxLoss <= MaxLossCap:
		return Check{name, StatusPass, fmt.Sprintf("Max loss $%.2f within cap.", *s.MaxLoss)}
	default:
		return Check{name, StatusWarn, fmt.Sprintf("Max loss $%.2f exceeds $%.2f cap.", *s.MaxLoss, MaxLossCap)}
	}
}

func overall(checks []Check) Status {
	status := StatusPass
	for _, c := range checks {
		switch c.Status {
		case StatusFail:
			return StatusFail
		case StatusWarn:
			status = StatusWarn
		}
	}
	return status
}
