// Package indicator 计算指数移动平均（EMA）并归纳为指标状态。
// 只报告指标事实，不做交易决策。
package indicator

import (
	"fmt"
	"math"

	"theta-guard/internal/core/model"
)

// 默认参数
const (
	DefaultShortPeriod  = 3
	DefaultLongPeriod   = 8
	DefaultSlopeEpsilon = 1e-9
)

// Params EMA 状态计算参数
type Params struct {
	// ShortPeriod 短周期
	ShortPeriod int
	// LongPeriod 长周期
	LongPeriod int
	// SlopeEpsilon 斜率判定阈值，|差值| 不超过该值视为走平
	SlopeEpsilon float64
}

// DefaultParams 返回默认参数（3/8，epsilon 1e-9）
func DefaultParams() Params {
	return Params{
		ShortPeriod:  DefaultShortPeriod,
		LongPeriod:   DefaultLongPeriod,
		SlopeEpsilon: DefaultSlopeEpsilon,
	}
}

// ComputeSeries 计算与 prices 等长的 EMA 序列
// 种子为前 period 个价格的算术平均，前 period 个输出全部等于种子，
// 之后按 ema[i] = (p[i] - ema[i-1]) * k + ema[i-1] 递推，k = 2/(period+1)。
// 数据不足 period+2 或参数非法时返回 (nil, false)。
func ComputeSeries(prices []float64, period int) (series []float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			series, ok = nil, false
		}
	}()

	if period < 1 || len(prices) < period+2 {
		return nil, false
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, len(prices))

	var sum float64
	for _, p := range prices[:period] {
		sum += p
	}
	seed := sum / float64(period)
	for i := 0; i < period; i++ {
		out[i] = seed
	}

	prev := seed
	for i := period; i < len(prices); i++ {
		cur := (prices[i]-prev)*k + prev
		out[i] = cur
		prev = cur
	}
	return out, true
}

// ComputeState 计算短/长 EMA 的最新状态
// 任何校验失败都返回 Valid=false、数值字段为空的状态，并附带原因；不会 panic。
func ComputeState(prices []float64, params Params) (state model.IndicatorState) {
	state = invalidState(len(prices), "")
	defer func() {
		if r := recover(); r != nil {
			state = invalidState(len(prices), "Unexpected error during EMA computation. Defaulting to invalid state.")
		}
	}()

	short, long := params.ShortPeriod, params.LongPeriod
	eps := params.SlopeEpsilon
	if eps < 0 || math.IsNaN(eps) {
		eps = DefaultSlopeEpsilon
	}

	if short < 1 {
		state.Reason = fmt.Sprintf("Invalid short period: %d. Must be a positive integer.", short)
		return state
	}
	if long < 1 {
		state.Reason = fmt.Sprintf("Invalid long period: %d. Must be a positive integer.", long)
		return state
	}
	if short >= long {
		state.Reason = fmt.Sprintf("Short period (%d) must be less than long period (%d).", short, long)
		return state
	}

	minRequired := long + 2
	if len(prices) < minRequired {
		state.Reason = fmt.Sprintf("Insufficient data: %d prices provided, minimum %d required for period %d.",
			len(prices), minRequired, long)
		return state
	}

	for i, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			state.Reason = fmt.Sprintf("Invalid price at index %d: %v. Prices must be finite and positive.", i, p)
			return state
		}
	}

	shortSeries, ok := ComputeSeries(prices, short)
	if !ok {
		state.Reason = "Failed to compute short EMA series."
		return state
	}
	longSeries, ok := ComputeSeries(prices, long)
	if !ok {
		state.Reason = "Failed to compute long EMA series."
		return state
	}

	shortNow := shortSeries[len(shortSeries)-1]
	longNow := longSeries[len(longSeries)-1]
	longPrev := longSeries[len(longSeries)-2]

	slope := classifySlope(longNow-longPrev, eps)
	above := shortNow > longNow

	return model.IndicatorState{
		ShortValue: model.Float(shortNow),
		LongValue:  model.Float(longNow),
		Above:      above,
		Slope:      slope,
		PointsUsed: len(prices),
		Valid:      true,
		Reason: fmt.Sprintf("EMA state computed: short(%d)=%.4f, long(%d)=%.4f, above=%t, slope=%s.",
			short, shortNow, long, longNow, above, slope),
	}
}

func classifySlope(diff, eps float64) model.Slope {
	switch {
	case diff > eps:
		return model.SlopePositive
	case diff < -eps:
		return model.SlopeNegative
	default:
		return model.SlopeZero
	}
}

// invalidState 无效状态：数值缺失，斜率按最保守的 NEGATIVE 处理
func invalidState(points int, reason string) model.IndicatorState {
	return model.IndicatorState{
		Slope:      model.SlopeNegative,
		PointsUsed: points,
		Reason:     reason,
	}
}
