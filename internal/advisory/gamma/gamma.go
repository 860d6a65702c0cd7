// Package gamma 根据现价到空头行权价的距离与预期波动，给出临近风险提示。
// 这是简化的距离代理，不是完整的 GEX 分析；不影响交易决策。
package gamma

import (
	"fmt"
	"math"

	"theta-guard/internal/core/model"
	"theta-guard/internal/util/round"
)

// Level 提示级别
type Level string

const (
	LevelNormal   Level = "NORMAL"
	LevelElevated Level = "ELEVATED"
	LevelHigh     Level = "HIGH"
	LevelNA       Level = "N/A"
)

// MoveSource 预期波动的来源
type MoveSource string

const (
	SourceProvided MoveSource = "provided"
	SourceIV       MoveSource = "iv_based"
	SourceFallback MoveSource = "fallback_1.5pct"
)

// FallbackMovePct 无波动率数据时按现价的 1.5% 估算预期波动
const FallbackMovePct = 0.015

// MoveInputs 预期波动的可选输入，优先级：ExpectedMove > IV×sqrt(DTE/365) > 回退值
type MoveInputs struct {
	ExpectedMove *float64
	// IV 隐含波动率，小数形式（0.15 表示 15%）
	IV  *float64
	DTE int
}

// Warning 临近风险提示
type Warning struct {
	Level        Level      `json:"level"`
	Detail       string     `json:"detail"`
	Distance     *float64   `json:"distance"`
	ExpectedMove *float64   `json:"expected_move"`
	MoveSource   MoveSource `json:"move_source,omitempty"`
	Valid        bool       `json:"valid"`
}

// ExpectedMove 按 MoveInputs 的优先级估算预期波动
func ExpectedMove(spot float64, in MoveInputs) (float64, MoveSource) {
	if in.ExpectedMove != nil && *in.ExpectedMove > 0 {
		return *in.ExpectedMove, SourceProvided
	}
	if in.IV != nil && *in.IV > 0 && in.DTE > 0 {
		return spot * *in.IV * math.Sqrt(float64(in.DTE)/365), SourceIV
	}
	return spot * FallbackMovePct, SourceFallback
}

// ShortStrike 返回结构中卖出 2 手的空头行权价；结构为空或未找到时为 nil
func ShortStrike(s *model.BWBStructure) *float64 {
	if s == nil {
		return nil
	}
	for _, l := range s.Legs {
		if l.Side == model.SideSell && l.Quantity == 2 {
			k := l.Strike
			return &k
		}
	}
	return nil
}

// Compute 距离 < 0.5 倍预期波动为 HIGH，< 1 倍为 ELEVATED，否则 NORMAL
func Compute(spot, shortStrike *float64, in MoveInputs) Warning {
	w := Warning{Level: LevelNA}
	if spot == nil || !(*spot > 0) || math.IsInf(*spot, 0) {
		w.Detail = "Spot price missing or invalid."
		return w
	}
	if shortStrike == nil || !(*shortStrike > 0) || math.IsInf(*shortStrike, 0) {
		w.Detail = "Short strike missing or invalid."
		return w
	}
	s, k := *spot, *shortStrike
	distance := math.Abs(s - k)
	w.Distance = ptr2(distance)

	move, src := ExpectedMove(s, in)
	if !(move > 0) || math.IsInf(move, 0) {
		w.Detail = "Expected move could not be computed."
		return w
	}
	w.ExpectedMove = ptr2(move)
	w.MoveSource = src

	direction := "above"
	if k < s {
		direction = "below"
	}
	switch {
	case distance < 0.5*move:
		w.Level = LevelHigh
		w.Detail = fmt.Sprintf("HIGH RISK: short strike %.0f is only %.1f pts %s spot (%.0f), < 0.5x expected move (%.1f).",
			k, distance, direction, s, move)
	case distance < move:
		w.Level = LevelElevated
		w.Detail = fmt.Sprintf("ELEVATED: short strike %.0f is %.1f pts %s spot (%.0f), < 1x expected move (%.1f).",
			k, distance, direction, s, move)
	default:
		w.Level = LevelNormal
		w.Detail = fmt.Sprintf("NORMAL: short strike %.0f is %.1f pts %s spot (%.0f), >= 1x expected move (%.1f).",
			k, distance, direction, s, move)
	}
	w.Valid = true
	return w
}

func ptr2(v float64) *float64 {
	r := round.To(v, 2)
	return &r
}
