package model

// Slope 长周期 EMA 斜率分类
type Slope string

const (
	// SlopePositive 斜率为正
	SlopePositive Slope = "POSITIVE"
	// SlopeZero 斜率在 epsilon 范围内
	SlopeZero Slope = "ZERO"
	// SlopeNegative 斜率为负
	SlopeNegative Slope = "NEGATIVE"
)

// Known 判断是否为已知的斜率分类
func (s Slope) Known() bool {
	switch s {
	case SlopePositive, SlopeZero, SlopeNegative:
		return true
	default:
		return false
	}
}

// IndicatorState 指标状态
// 每次调用重新生成，不可变
type IndicatorState struct {
	// ShortValue 最新短周期 EMA，无效时为 nil
	ShortValue *float64 `json:"short_value"`
	// LongValue 最新长周期 EMA，无效时为 nil
	LongValue *float64 `json:"long_value"`
	// Above 短周期 EMA 是否高于长周期 EMA
	Above bool `json:"above"`
	// Slope 长周期 EMA 斜率分类
	Slope Slope `json:"slope"`
	// PointsUsed 输入的价格点数
	PointsUsed int `json:"points_used"`
	// Valid 计算是否成功
	Valid bool `json:"valid"`
	// Reason 说明
	Reason string `json:"reason"`
}

// Consistent 判断状态内部是否自洽
// 有效状态必须带有两个数值与已知的斜率分类
func (s *IndicatorState) Consistent() bool {
	if s == nil {
		return false
	}
	if !s.Valid {
		return true
	}
	return s.ShortValue != nil && s.LongValue != nil && s.Slope.Known()
}
