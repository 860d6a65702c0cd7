// Package events 标注交易周内的宏观事件（CPI、FOMC、NFP、四巫日）。
// 仅用于记录与展示，不影响交易决策；任何输入都不会报错。
package events

import (
	"strings"
	"time"

	"theta-guard/internal/util/timeutil"
)

// 事件名称
const (
	CPI          = "CPI"
	FOMC         = "FOMC"
	NFP          = "NFP"
	QuadWitching = "QUAD_WITCHING"
)

// order 事件输出顺序
var order = []string{CPI, FOMC, NFP, QuadWitching}

// schedule 2024-2026 年事件日期
var schedule = map[string][]string{
	CPI: {
		"2024-01-11", "2024-02-13", "2024-03-12", "2024-04-10", "2024-05-15",
		"2024-06-12", "2024-07-11", "2024-08-14", "2024-09-11", "2024-10-10",
		"2024-11-13", "2024-12-11",
		"2025-01-15", "2025-02-12", "2025-03-12", "2025-04-10", "2025-05-13",
		"2025-06-11", "2025-07-11", "2025-08-12", "2025-09-11", "2025-10-10",
		"2025-11-13", "2025-12-10",
		"2026-01-13", "2026-02-11", "2026-03-11", "2026-04-14", "2026-05-12",
		"2026-06-10", "2026-07-14", "2026-08-12", "2026-09-11", "2026-10-13",
		"2026-11-12", "2026-12-10",
	},
	FOMC: {
		"2024-01-31", "2024-03-20", "2024-05-01", "2024-06-12", "2024-07-31",
		"2024-09-18", "2024-11-07", "2024-12-18",
		"2025-01-29", "2025-03-19", "2025-05-07", "2025-06-18", "2025-07-30",
		"2025-09-17", "2025-11-05", "2025-12-17",
		"2026-01-28", "2026-03-18", "2026-04-29", "2026-06-17", "2026-07-29",
		"2026-09-16", "2026-11-04", "2026-12-16",
	},
	NFP: {
		"2024-01-05", "2024-02-02", "2024-03-08", "2024-04-05", "2024-05-03",
		"2024-06-07", "2024-07-05", "2024-08-02", "2024-09-06", "2024-10-04",
		"2024-11-01", "2024-12-06",
		"2025-01-10", "2025-02-07", "2025-03-07", "2025-04-04", "2025-05-02",
		"2025-06-06", "2025-07-03", "2025-08-01", "2025-09-05", "2025-10-03",
		"2025-11-07", "2025-12-05",
		"2026-01-09", "2026-02-06", "2026-03-06", "2026-04-03", "2026-05-08",
		"2026-06-05", "2026-07-02", "2026-08-07", "2026-09-04", "2026-10-02",
		"2026-11-06", "2026-12-04",
	},
	QuadWitching: {
		"2024-03-15", "2024-06-21", "2024-09-20", "2024-12-20",
		"2025-03-21", "2025-06-20", "2025-09-19", "2025-12-19",
		"2026-03-20", "2026-06-19", "2026-09-18", "2026-12-18",
	},
}

// Details 一周的事件明细
type Details struct {
	Tags      []string `json:"tags"`
	HasEvents bool     `json:"has_events"`
	WeekStart string   `json:"week_start,omitempty"`
	WeekEnd   string   `json:"week_end,omitempty"`
	Detail    string   `json:"detail"`
	Valid     bool     `json:"valid"`
}

// DisplayName 事件展示名（下划线替换为空格）
func DisplayName(event string) string {
	return strings.ReplaceAll(event, "_", " ")
}

// Tags 返回 date 所在周（周一至周五）内的事件标签
// 日期无法解析时返回空列表
func Tags(date string) []string {
	d, err := timeutil.ParseDate(date)
	if err != nil {
		return []string{}
	}
	return TagsFor(d)
}

// TagsFor 同 Tags，输入为 time.Time
func TagsFor(d time.Time) []string {
	mon := timeutil.MondayOf(d)
	fri := timeutil.FridayOf(mon)
	tags := []string{}
	for _, name := range order {
		for _, s := range schedule[name] {
			ev, err := timeutil.ParseDate(s)
			if err != nil {
				continue
			}
			if !ev.Before(mon) && !ev.After(fri) {
				tags = append(tags, DisplayName(name))
				break
			}
		}
	}
	return tags
}

// Describe 返回一周的事件明细
func Describe(date string) Details {
	d, err := timeutil.ParseDate(date)
	if err != nil {
		return Details{Tags: []string{}, Detail: "Invalid date provided."}
	}
	mon := timeutil.MondayOf(d)
	tags := TagsFor(d)
	out := Details{
		Tags:      tags,
		HasEvents: len(tags) > 0,
		WeekStart: timeutil.FormatDate(mon),
		WeekEnd:   timeutil.FormatDate(timeutil.FridayOf(mon)),
		Valid:     true,
	}
	if out.HasEvents {
		out.Detail = "Macro events this week: " + strings.Join(tags, ", ") + "."
	} else {
		out.Detail = "No major macro events this week."
	}
	return out
}
