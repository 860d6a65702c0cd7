// Package model 定义周度评估流水线中使用的核心数据结构。
// 包含交易周判定、指标状态、入场决策、期权链与结构、回测记录等类型。
package model

// TradingWeekResult 交易周判定结果
// 由周一日期与交易日历推导而来，只读
type TradingWeekResult struct {
	// Allowed 周一与周五均为交易日时为 true
	Allowed bool `json:"allowed"`
	// MondayIsTradingDay 周一是否为交易日
	MondayIsTradingDay bool `json:"monday_is_trading_day"`
	// FridayIsTradingDay 周五是否为交易日
	FridayIsTradingDay bool `json:"friday_is_trading_day"`
	// Reason 判定说明
	Reason string `json:"reason"`
}

// Consistent 判断结果内部是否自洽
// Allowed 为 true 时周一、周五必须同为交易日
func (r *TradingWeekResult) Consistent() bool {
	if r == nil {
		return false
	}
	if r.Allowed && !(r.MondayIsTradingDay && r.FridayIsTradingDay) {
		return false
	}
	return true
}

// EntryContext 入场上下文（调用方提供）
type EntryContext struct {
	// EntryDay 入场日，如 Monday；为空表示未指定
	EntryDay string `json:"entry_day"`
	// EntryTimeValid 入场时间是否落在有效窗口内
	EntryTimeValid bool `json:"entry_time_valid"`
}

var weekdayNames = map[string]bool{
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
}

// Consistent 判断上下文是否可用
// EntryDay 若已填写则必须是合法的星期名称
func (c *EntryContext) Consistent() bool {
	if c == nil {
		return false
	}
	if c.EntryDay != "" && !weekdayNames[c.EntryDay] {
		return false
	}
	return true
}
