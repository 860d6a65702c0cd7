// Package structure 根据期权链快照构建破翼蝶式（BWB）结构。
//
// PUT_CREDIT：看跌期权按行权价升序，|delta| 最接近目标（默认 0.55）的为空头（卖 2 手），
// 上方第 1 档为近端多头，下方第 2 档为翼。
// CALL_DEBIT：看涨期权镜像构建，目标 0.45，上方第 2 档为翼，下方第 1 档为近端多头。
//
// 构建是纯函数：相同输入必然得到相同输出。
package structure

import (
	"fmt"
	"math"
	"sort"

	"theta-guard/internal/core/model"
	"theta-guard/internal/util/round"
)

// 默认目标 delta
const (
	DefaultPutTargetDelta  = 0.55
	DefaultCallTargetDelta = 0.45
)

// Params 构建参数
type Params struct {
	// PutTargetDelta PUT_CREDIT 空头目标 |delta|
	PutTargetDelta float64
	// CallTargetDelta CALL_DEBIT 空头目标 |delta|
	CallTargetDelta float64
}

// DefaultParams 返回默认参数
func DefaultParams() Params {
	return Params{PutTargetDelta: DefaultPutTargetDelta, CallTargetDelta: DefaultCallTargetDelta}
}

// layout 描述一个变体的腿位置
type layout struct {
	kind   model.OptionKind
	target float64
	// nearOffset 近端多头相对空头的位置（决定风险侧价差宽度）
	nearOffset int
	// wingOffset 翼相对空头的位置
	wingOffset int
	label      string
}

func layoutFor(typ model.StructureType, p Params) (layout, bool) {
	switch typ {
	case model.StructurePutCredit:
		return layout{kind: model.KindPut, target: p.PutTargetDelta, nearOffset: 1, wingOffset: -2, label: "PUT credit"}, true
	case model.StructureCallDebit:
		return layout{kind: model.KindCall, target: p.CallTargetDelta, nearOffset: -1, wingOffset: 2, label: "CALL debit"}, true
	default:
		return layout{}, false
	}
}

// Build 构建 BWB 结构
// 失败时返回 Valid=false、空腿列表与原因；任何 panic 都转为无效结构
func Build(chain []model.OptionRecord, typ model.StructureType, p Params) (s model.BWBStructure) {
	s = invalid(typ, "")
	defer func() {
		if r := recover(); r != nil {
			s = invalid(typ, "Unexpected error during structure construction.")
		}
	}()

	if len(chain) == 0 {
		s.Reason = "Invalid or empty option chain provided."
		return s
	}
	lay, ok := layoutFor(typ, p)
	if !ok {
		s.Reason = fmt.Sprintf("Unknown structure type: %s", typ)
		return s
	}
	if math.IsNaN(lay.target) || lay.target < 0 {
		s.Reason = fmt.Sprintf("Invalid target delta: %v", lay.target)
		return s
	}

	opts := filterKind(chain, lay.kind)
	if len(opts) == 0 {
		s.Reason = fmt.Sprintf("No %s options found in chain.", kindWord(lay.kind))
		return s
	}
	for _, o := range opts {
		if !finitePositive(o.Strike) {
			s.Reason = fmt.Sprintf("Malformed %s record: strike %v is not a finite positive number.", kindWord(lay.kind), o.Strike)
			return s
		}
		if o.Delta != nil && !finite(*o.Delta) {
			s.Reason = fmt.Sprintf("Malformed %s record at strike %v: delta is not finite.", kindWord(lay.kind), o.Strike)
			return s
		}
	}
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Strike < opts[j].Strike })

	shortIdx := closestDelta(opts, lay.target)
	if shortIdx < 0 {
		s.Reason = fmt.Sprintf("Could not find %s option near %s delta.", kindWord(lay.kind), deltaLabel(lay.target))
		return s
	}
	short := opts[shortIdx]
	// 与按行权价定位一致：重复行权价时取首次出现的位置
	i := firstIndexOfStrike(opts, short.Strike)

	upperOff, lowerOff := lay.nearOffset, lay.wingOffset
	if upperOff < lowerOff {
		upperOff, lowerOff = lowerOff, upperOff
	}
	if i+upperOff >= len(opts) {
		if upperOff == 1 {
			s.Reason = fmt.Sprintf("No strike available above short strike %v.", short.Strike)
		} else {
			s.Reason = fmt.Sprintf("Not enough strikes above short strike %v for wing.", short.Strike)
		}
		return s
	}
	if i+lowerOff < 0 {
		if lowerOff == -1 {
			s.Reason = fmt.Sprintf("No strike available below short strike %v.", short.Strike)
		} else {
			s.Reason = fmt.Sprintf("Not enough strikes below short strike %v for wing.", short.Strike)
		}
		return s
	}
	upperStrike := opts[i+upperOff].Strike
	lowerStrike := opts[i+lowerOff].Strike

	upper, ok := findByStrike(opts, upperStrike)
	if !ok {
		s.Reason = fmt.Sprintf("Could not find %s at strike %v.", kindWord(lay.kind), upperStrike)
		return s
	}
	lower, ok := findByStrike(opts, lowerStrike)
	if !ok {
		s.Reason = fmt.Sprintf("Could not find %s at strike %v.", kindWord(lay.kind), lowerStrike)
		return s
	}

	for _, o := range []model.OptionRecord{short, upper, lower} {
		if reason, bad := malformedQuote(o); bad {
			s.Reason = reason
			return s
		}
	}

	shortMid, upperMid, lowerMid := short.Mid(), upper.Mid(), lower.Mid()
	net := 2*shortMid - upperMid - lowerMid

	nearStrike := upperStrike
	if lay.nearOffset < 0 {
		nearStrike = lowerStrike
	}
	maxLoss := math.Abs(nearStrike-short.Strike) - net
	if maxLoss < 0 {
		maxLoss = 0
	}
	maxLoss = round.Round4(maxLoss)

	s.Legs = []model.Leg{
		leg(model.SideSell, 2, short, shortMid),
		leg(model.SideBuy, 1, upper, upperMid),
		leg(model.SideBuy, 1, lower, lowerMid),
	}
	s.NetPremium = round.Round4(net)
	s.MaxLoss = &maxLoss
	s.Valid = true
	s.Reason = describe(lay, short.Strike, upperStrike, lowerStrike, net, maxLoss)
	return s
}

func invalid(typ model.StructureType, reason string) model.BWBStructure {
	return model.BWBStructure{Type: typ, Legs: []model.Leg{}, Reason: reason}
}

func filterKind(chain []model.OptionRecord, kind model.OptionKind) []model.OptionRecord {
	out := make([]model.OptionRecord, 0, len(chain))
	for _, o := range chain {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

// closestDelta 返回 |delta| 与目标距离最小的下标；严格小于才替换，平局保留先出现者
// 全部缺少 delta 时返回 -1
func closestDelta(opts []model.OptionRecord, target float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, o := range opts {
		if o.Delta == nil {
			continue
		}
		d := math.Abs(math.Abs(*o.Delta) - target)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func firstIndexOfStrike(opts []model.OptionRecord, strike float64) int {
	for i, o := range opts {
		if o.Strike == strike {
			return i
		}
	}
	return -1
}

func findByStrike(opts []model.OptionRecord, strike float64) (model.OptionRecord, bool) {
	if i := firstIndexOfStrike(opts, strike); i >= 0 {
		return opts[i], true
	}
	return model.OptionRecord{}, false
}

func malformedQuote(o model.OptionRecord) (string, bool) {
	if !finite(o.Bid) || !finite(o.Ask) || o.Bid < 0 || o.Ask < 0 {
		return fmt.Sprintf("Malformed quote at strike %v: bid/ask must be finite and non-negative.", o.Strike), true
	}
	if o.Ask < o.Bid {
		return fmt.Sprintf("Malformed quote at strike %v: ask %v below bid %v.", o.Strike, o.Ask, o.Bid), true
	}
	return "", false
}

func leg(side model.LegSide, qty int, o model.OptionRecord, mid float64) model.Leg {
	return model.Leg{
		Side:     side,
		Quantity: qty,
		Kind:     o.Kind,
		Strike:   o.Strike,
		Price:    round.Round4(mid),
		Delta:    round.Ptr(o.Delta),
	}
}

func describe(lay layout, short, upper, lower, net, maxLoss float64) string {
	if lay.kind == model.KindPut {
		return fmt.Sprintf("%s BWB built: short %v (x2), long %v, wing %v. Net credit: %.2f, Max loss: %.2f",
			lay.label, short, upper, lower, net, maxLoss)
	}
	return fmt.Sprintf("%s BWB built: short %v (x2), wing %v, long %v. Net premium: %.2f, Max loss: %.2f",
		lay.label, short, upper, lower, net, maxLoss)
}

func kindWord(k model.OptionKind) string {
	if k == model.KindPut {
		return "put"
	}
	return "call"
}

// deltaLabel 0.55 -> "55"
func deltaLabel(target float64) string {
	return fmt.Sprintf("%g", round.To(target*100, 2))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finitePositive(v float64) bool {
	return finite(v) && v > 0
}
