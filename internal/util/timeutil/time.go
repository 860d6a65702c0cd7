// Package timeutil 提供交易周相关的日期工具。
// 所有日期以 YYYY-MM-DD 表示，按 UTC 零点解析，避免时区导致的日期偏移。
package timeutil

import (
	"fmt"
	"time"
)

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// FridayOffset 周一到同周周五的天数
const FridayOffset = 4

// ParseDate 解析 YYYY-MM-DD 日期
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate 格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOnly 截断到当天 UTC 零点
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MondayOf 返回 t 所在周的周一（周日归属上一周）
func MondayOf(t time.Time) time.Time {
	d := DateOnly(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// FridayOf 返回周一对应的周五
func FridayOf(monday time.Time) time.Time {
	return DateOnly(monday).AddDate(0, 0, FridayOffset)
}

// ISOWeek 返回 ISO 周标识，如 2024-W03
func ISOWeek(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// SameDay 判断两个时间是否为同一自然日
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
