// Package confidence 对允许交易的周给出 0-10 的信号置信度评分。
// 规则确定、只读，不影响交易决策。
package confidence

import (
	"fmt"
	"math"

	"theta-guard/internal/advisory/gamma"
	"theta-guard/internal/core/model"
	"theta-guard/internal/util/round"
)

// Grade 评分等级
type Grade string

const (
	GradeA  Grade = "A"
	GradeB  Grade = "B"
	GradeC  Grade = "C"
	GradeD  Grade = "D"
	GradeNA Grade = "N/A"
)

// 评分基准与上下限
const (
	BaseScore = 5.0
	MinScore  = 0.0
	MaxScore  = 10.0
)

// Score 置信度评分
type Score struct {
	Score   float64  `json:"score"`
	Grade   Grade    `json:"grade"`
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons"`
}

// Compute 从基准 5 分出发依次加减：
//   - EMA 间距：min(2, |短-长| / (现价×0.2%))
//   - 长 EMA 斜率：正 +1，零 -0.5，负 0
//   - 权利金/最大亏损：>= 0.5 +1，>= 0.3 0，否则 -1
//   - 空头距离：>= 1 倍预期波动 +1，>= 0.5 倍 0，否则 -1
//
// 结果限制在 [0,10] 并保留 1 位小数。expectedMove 为 nil 时按现价的 1.5% 估算。
func Compute(ind model.IndicatorState, s *model.BWBStructure, spot, expectedMove *float64) Score {
	sc := Score{Grade: GradeNA, Reasons: []string{}}
	switch {
	case !ind.Valid:
		sc.Reasons = append(sc.Reasons, "EMA state is invalid or missing.")
		return sc
	case s == nil || !s.Valid:
		sc.Reasons = append(sc.Reasons, "BWB structure is invalid or missing.")
		return sc
	case spot == nil || !(*spot > 0) || math.IsInf(*spot, 0):
		sc.Reasons = append(sc.Reasons, "Spot price is missing or invalid.")
		return sc
	}

	score := BaseScore
	score += sc.emaSeparation(ind, *spot)
	score += sc.emaSlope(ind.Slope)
	score += sc.creditToRisk(s)
	score += sc.shortDistance(s, *spot, expectedMove)

	score = math.Max(MinScore, math.Min(MaxScore, score))
	sc.Grade = gradeOf(score)
	sc.Score = round.To(score, 1)
	sc.Valid = true
	return sc
}

func (sc *Score) note(format string, args ...any) {
	sc.Reasons = append(sc.Reasons, fmt.Sprintf(format, args...))
}

func (sc *Score) emaSeparation(ind model.IndicatorState, spot float64) float64 {
	if ind.ShortValue == nil || ind.LongValue == nil {
		sc.note("EMA values missing, no separation bonus.")
		return 0
	}
	sep := math.Abs(*ind.ShortValue - *ind.LongValue)
	norm := spot * 0.002
	bonus := math.Min(2, sep/norm)
	switch {
	case bonus >= 1.5:
		sc.note("Strong EMA separation (+%.1f): %.2f pts", bonus, sep)
	case bonus >= 0.5:
		sc.note("Moderate EMA separation (+%.1f): %.2f pts", bonus, sep)
	default:
		sc.note("Weak EMA separation (+%.1f): %.2f pts", bonus, sep)
	}
	return bonus
}

func (sc *Score) emaSlope(slope model.Slope) float64 {
	switch slope {
	case model.SlopePositive:
		sc.note("Long EMA slope positive (+1.0)")
		return 1
	case model.SlopeZero:
		sc.note("Long EMA slope flat (-0.5)")
		return -0.5
	case model.SlopeNegative:
		sc.note("Long EMA slope negative (already blocked by signal gate)")
	}
	return 0
}

func (sc *Score) creditToRisk(s *model.BWBStructure) float64 {
	if s.MaxLoss == nil || !(*s.MaxLoss > 0) {
		sc.note("Max loss unknown, cannot compute credit/risk ratio.")
		return 0
	}
	ratio := s.NetPremium / *s.MaxLoss
	switch {
	case ratio >= 0.5:
		sc.note("Good credit/risk ratio (+1.0): %.2f", ratio)
		return 1
	case ratio >= 0.3:
		sc.note("Acceptable credit/risk ratio: %.2f", ratio)
		return 0
	default:
		sc.note("Poor credit/risk ratio (-1.0): %.2f", ratio)
		return -1
	}
}

func (sc *Score) shortDistance(s *model.BWBStructure, spot float64, expectedMove *float64) float64 {
	k := gamma.ShortStrike(s)
	if k == nil {
		sc.note("Short strike not found in structure.")
		return 0
	}
	move, src := gamma.ExpectedMove(spot, gamma.MoveInputs{ExpectedMove: expectedMove})
	distance := math.Abs(spot - *k)
	switch {
	case distance >= move:
		sc.note("Good distance to short (+1.0): %.1f >= %.1f (%s)", distance, move, src)
		return 1
	case distance >= 0.5*move:
		sc.note("Moderate distance to short: %.1f vs %.1f (%s)", distance, move, src)
		return 0
	default:
		sc.note("Short strike too close (-1.0): %.1f < %.1f (%s)", distance, 0.5*move, src)
		return -1
	}
}

// gradeOf A >= 8，B >= 6.5，C >= 5，其余为 D
func gradeOf(score float64) Grade {
	switch {
	case score >= 8:
		return GradeA
	case score >= 6.5:
		return GradeB
	case score >= 5:
		return GradeC
	default:
		return GradeD
	}
}
