// Package signal 实现两级入场规则引擎。
// 第一级为硬性阻断，全部评估；有任何阻断则直接 NO_TRADE 并跳过第二级。
// 第二级为信号条件，同样全部评估；全部通过才允许开仓。
package signal

import (
	"fmt"

	"theta-guard/internal/core/model"
)

// 阻断与失败标签
const (
	TagHolidayDataInvalid = "holiday_data_invalid"
	TagHolidayBlock       = "holiday_block"
	TagEntryContextBad    = "entry_context_invalid"
	TagEntryTimeInvalid   = "entry_time_invalid"
	TagEMADataInvalid     = "ema_data_invalid"
	TagEMAInvalid         = "ema_invalid"
	TagEvaluationError    = "evaluation_error"

	TagShortNotAboveLong = "short_ema_not_above_long"
	TagLongSlopeNegative = "long_ema_slope_negative"
)

// ReasonAllClear 全部通过时的确认说明
const ReasonAllClear = "All hard blocks cleared and signal conditions met."

// Tier 规则级别
type Tier int

const (
	// TierHardBlock 硬性阻断
	TierHardBlock Tier = iota + 1
	// TierSignal 信号条件
	TierSignal
)

// Inputs 单周评估的三个输入，任一可为 nil（视为缺失）
type Inputs struct {
	Week      *model.TradingWeekResult
	Indicator *model.IndicatorState
	Context   *model.EntryContext
}

// Finding 单条规则的命中结果
type Finding struct {
	Tag    string
	Reason string
}

// Check 命名规则
// Eval 返回 nil 表示通过
type Check struct {
	Name string
	Tier Tier
	Eval func(in Inputs) *Finding
}

// Engine 入场规则引擎
// 规则按固定顺序累加评估，不在首个失败处短路，保证所有原因同时可见
type Engine struct {
	// shortPeriod/longPeriod 仅用于说明文字
	shortPeriod int
	longPeriod  int
	checks      []Check
}

// NewEngine 创建规则引擎
// 参数 shortPeriod/longPeriod: EMA 周期，出现在信号失败说明中
func NewEngine(shortPeriod, longPeriod int) *Engine {
	e := &Engine{shortPeriod: shortPeriod, longPeriod: longPeriod}
	e.checks = []Check{
		{Name: "holiday", Tier: TierHardBlock, Eval: checkHoliday},
		{Name: "entry_context", Tier: TierHardBlock, Eval: checkEntryContext},
		{Name: "indicator", Tier: TierHardBlock, Eval: checkIndicator},
		{Name: "ema_above", Tier: TierSignal, Eval: e.checkAbove},
		{Name: "ema_slope", Tier: TierSignal, Eval: e.checkSlope},
	}
	return e
}

// Checks 返回规则列表副本（按评估顺序）
func (e *Engine) Checks() []Check {
	out := make([]Check, len(e.checks))
	copy(out, e.checks)
	return out
}

// Evaluate 根据三个输入计算本周入场决策
// 评估过程中的任何 panic 都转为 evaluation_error 硬性阻断
func (e *Engine) Evaluate(week *model.TradingWeekResult, indicator *model.IndicatorState, ctx *model.EntryContext) (d model.EntryDecision) {
	d = model.EntryDecision{
		Decision:       model.DecisionNoTrade,
		HardBlocks:     []string{},
		SignalFailures: []string{},
		Reasons:        []string{},
	}
	defer func() {
		if r := recover(); r != nil {
			d.Decision = model.DecisionNoTrade
			d.HardBlocks = append(d.HardBlocks, TagEvaluationError)
			d.Reasons = append(d.Reasons, "Unexpected error during evaluation. Defaulting to NO TRADE.")
		}
	}()

	in := Inputs{Week: week, Indicator: indicator, Context: ctx}

	for _, tier := range []Tier{TierHardBlock, TierSignal} {
		for _, c := range e.checks {
			if c.Tier != tier {
				continue
			}
			f := c.Eval(in)
			if f == nil {
				continue
			}
			if tier == TierHardBlock {
				d.HardBlocks = append(d.HardBlocks, f.Tag)
			} else {
				d.SignalFailures = append(d.SignalFailures, f.Tag)
			}
			d.Reasons = append(d.Reasons, f.Reason)
		}
		if tier == TierHardBlock && len(d.HardBlocks) > 0 {
			return d
		}
	}
	if len(d.SignalFailures) > 0 {
		return d
	}

	d.Decision = model.DecisionTradeAllowed
	d.Reasons = append(d.Reasons, ReasonAllClear)
	return d
}

func checkHoliday(in Inputs) *Finding {
	if !in.Week.Consistent() {
		return &Finding{TagHolidayDataInvalid, "HARD BLOCK: Holiday result is missing or malformed."}
	}
	if !in.Week.Allowed {
		reason := in.Week.Reason
		if reason == "" {
			reason = "Holiday check failed."
		}
		return &Finding{TagHolidayBlock, "HARD BLOCK: " + reason}
	}
	return nil
}

func checkEntryContext(in Inputs) *Finding {
	if !in.Context.Consistent() {
		return &Finding{TagEntryContextBad, "HARD BLOCK: Entry context is missing or malformed."}
	}
	if !in.Context.EntryTimeValid {
		return &Finding{TagEntryTimeInvalid, "HARD BLOCK: Entry time is outside the valid window."}
	}
	return nil
}

func checkIndicator(in Inputs) *Finding {
	if !in.Indicator.Consistent() {
		return &Finding{TagEMADataInvalid, "HARD BLOCK: EMA state is missing or malformed."}
	}
	if !in.Indicator.Valid {
		reason := in.Indicator.Reason
		if reason == "" {
			reason = "EMA data is invalid."
		}
		return &Finding{TagEMAInvalid, "HARD BLOCK: " + reason}
	}
	return nil
}

func (e *Engine) checkAbove(in Inputs) *Finding {
	if in.Indicator.Above {
		return nil
	}
	return &Finding{TagShortNotAboveLong,
		fmt.Sprintf("SIGNAL FAIL: %d-period EMA is not above %d-period EMA.", e.shortPeriod, e.longPeriod)}
}

func (e *Engine) checkSlope(in Inputs) *Finding {
	if in.Indicator.Slope != model.SlopeNegative {
		return nil
	}
	return &Finding{TagLongSlopeNegative,
		fmt.Sprintf("SIGNAL FAIL: %d-period EMA slope is negative.", e.longPeriod)}
}
