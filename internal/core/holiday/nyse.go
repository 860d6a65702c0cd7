package holiday

import (
	"context"
	"fmt"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/aa"
	"github.com/rickar/cal/v2/us"

	"theta-guard/internal/util/timeutil"
)

// maxRangeDays 单次查询允许的最大天数
const maxRangeDays = 366

// NYSE 与联邦假日的差异：元旦逢周六不提前到周五休市
var nyseNewYear = &cal.Holiday{
	Name:     "New Year's Day",
	Type:     cal.ObservanceOther,
	Month:    time.January,
	Day:      1,
	Observed: []cal.AltDay{{Day: time.Sunday, Offset: 1}},
	Func:     cal.CalcDayOfMonth,
}

// 交易所自 2022 年起休市
var nyseJuneteenth = &cal.Holiday{
	Name:      "Juneteenth",
	Type:      cal.ObservanceOther,
	Month:     time.June,
	Day:       19,
	StartYear: 2022,
	Observed: []cal.AltDay{
		{Day: time.Saturday, Offset: -1},
		{Day: time.Sunday, Offset: 1},
	},
	Func: cal.CalcDayOfMonth,
}

// NYSECalendar 基于规则的纽交所交易日历
// 覆盖常规假日；临时休市（如国丧日）通过 extraClosures 补充
type NYSECalendar struct {
	bc     *cal.BusinessCalendar
	closed map[string]bool
}

// NewNYSECalendar 创建纽交所日历
// 参数 extraClosures: 额外休市日期（YYYY-MM-DD），格式错误时返回错误
func NewNYSECalendar(extraClosures []string) (*NYSECalendar, error) {
	bc := cal.NewBusinessCalendar()
	bc.AddHoliday(
		nyseNewYear,
		us.MlkDay,
		us.PresidentsDay,
		aa.GoodFriday,
		us.MemorialDay,
		nyseJuneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)

	closed := make(map[string]bool, len(extraClosures))
	for _, s := range extraClosures {
		d, err := timeutil.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("extra closure: %w", err)
		}
		closed[timeutil.FormatDate(d)] = true
	}
	return &NYSECalendar{bc: bc, closed: closed}, nil
}

// IsTradingDay 判断单日是否开市
func (c *NYSECalendar) IsTradingDay(d time.Time) bool {
	d = timeutil.DateOnly(d)
	if c.closed[timeutil.FormatDate(d)] {
		return false
	}
	return c.bc.IsWorkday(d)
}

// TradingDays 实现 Calendar
func (c *NYSECalendar) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	start, end = timeutil.DateOnly(start), timeutil.DateOnly(end)
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: %s after %s", timeutil.FormatDate(start), timeutil.FormatDate(end))
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("range too large: %s to %s", timeutil.FormatDate(start), timeutil.FormatDate(end))
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days, nil
}
