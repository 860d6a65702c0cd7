// Package advisory 汇总允许交易周的参考信息：置信度、成交质量、临近风险与仓位建议。
// 所有结果只读，不回写决策；未允许交易时全部为 nil。
package advisory

import (
	"go.uber.org/zap"

	"theta-guard/internal/advisory/confidence"
	"theta-guard/internal/advisory/gamma"
	"theta-guard/internal/advisory/quality"
	"theta-guard/internal/advisory/sizing"
	"theta-guard/internal/core/model"
	"theta-guard/internal/pipeline"
)

// Params 参考信息输入
type Params struct {
	// AccountSize 账户规模（美元），<= 0 时仓位建议无效
	AccountSize float64
	MaxRiskPct  float64
	// ExpectedMove 预期波动（点），为 nil 时按现价的 1.5% 估算
	ExpectedMove *float64
}

// Layers 参考信息
type Layers struct {
	Confidence *confidence.Score       `json:"confidence_score"`
	Quality    *quality.Report         `json:"execution_quality"`
	Gamma      *gamma.Warning          `json:"gamma_warning"`
	Sizing     *sizing.Recommendation `json:"position_sizing"`
}

// Empty 是否未计算任何参考信息
func (l Layers) Empty() bool {
	return l.Confidence == nil && l.Quality == nil && l.Gamma == nil && l.Sizing == nil
}

// SpotProxy 以最新收盘价近似现价
func SpotProxy(prices []float64) *float64 {
	if len(prices) == 0 {
		return nil
	}
	v := prices[len(prices)-1]
	return &v
}

// Compute 仅在允许交易时计算；任何 panic 都被吞掉并返回空结果
func Compute(res pipeline.WeekResult, prices []float64, chain []model.OptionRecord, p Params, logger *zap.Logger) (out Layers) {
	if !res.Entry.Allowed() {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("advisory panic", zap.Any("panic", r))
			}
			out = Layers{}
		}
	}()

	spot := SpotProxy(prices)
	s := res.Structure

	conf := confidence.Compute(res.Indicator, s, spot, p.ExpectedMove)
	qual := quality.Evaluate(chain, s)
	warn := gamma.Compute(spot, gamma.ShortStrike(s), gamma.MoveInputs{ExpectedMove: p.ExpectedMove})

	var maxLoss, net *float64
	if s != nil && s.Valid {
		maxLoss = s.MaxLoss
		np := s.NetPremium
		net = &np
	}
	size := sizing.Recommend(p.AccountSize, p.MaxRiskPct, maxLoss)
	if size.Valid && *size.Contracts > 0 && net != nil {
		m := sizing.Metrics(p.AccountSize, maxLoss, net, *size.Contracts)
		size.Risk = &m
	}

	return Layers{Confidence: &conf, Quality: &qual, Gamma: &warn, Sizing: &size}
}
