// Package holiday 实现交易周准入判定（Holiday Gate）。
// 周一与同周周五都必须是交易日；任何异常都按“不交易”处理，且不向调用方返回错误。
package holiday

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"theta-guard/internal/core/model"
	"theta-guard/internal/util/timeutil"
)

// DefaultTimeout 日历查询默认超时
const DefaultTimeout = 5 * time.Second

// Calendar 交易日历
// 返回 [start, end] 闭区间内的交易日（UTC 零点）
type Calendar interface {
	TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error)
}

// CalendarFunc 函数适配器
type CalendarFunc func(ctx context.Context, start, end time.Time) ([]time.Time, error)

// TradingDays 实现 Calendar
func (f CalendarFunc) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	return f(ctx, start, end)
}

// Gate 交易周判定器
type Gate struct {
	cal     Calendar
	timeout time.Duration
	logger  *zap.Logger
}

// NewGate 创建判定器
// 参数 cal: 交易日历，可为 nil（此时所有周都被拒绝）
// 参数 timeout: 单次日历查询超时，<=0 使用默认值
func NewGate(cal Calendar, timeout time.Duration, logger *zap.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{cal: cal, timeout: timeout, logger: logger}
}

var errLookupTimeout = errors.New("calendar lookup timed out")

// Check 判定 monday 所在周是否允许交易
func (g *Gate) Check(ctx context.Context, monday string) (res model.TradingWeekResult) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("holiday gate panic", zap.Any("panic", r), zap.String("monday", monday))
			res = model.TradingWeekResult{Reason: "Unexpected error during holiday check. Defaulting to NO TRADE."}
		}
	}()

	mon, err := timeutil.ParseDate(monday)
	if err != nil {
		return model.TradingWeekResult{Reason: fmt.Sprintf("Invalid date format: %s. Expected YYYY-MM-DD.", monday)}
	}
	if mon.Weekday() != time.Monday {
		return model.TradingWeekResult{Reason: fmt.Sprintf("Date %s is not a Monday.", monday)}
	}
	fri := timeutil.FridayOf(mon)
	friday := timeutil.FormatDate(fri)

	if g.cal == nil {
		return model.TradingWeekResult{Reason: "Trading calendar unavailable. Defaulting to NO TRADE."}
	}

	days, err := g.lookup(ctx, mon, fri)
	if err != nil {
		g.logger.Warn("calendar lookup failed", zap.String("monday", monday), zap.Error(err))
		if errors.Is(err, errLookupTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return model.TradingWeekResult{Reason: "Market schedule lookup timed out. Defaulting to NO TRADE."}
		}
		return model.TradingWeekResult{Reason: "Failed to retrieve market schedule. Defaulting to NO TRADE."}
	}
	if len(days) == 0 {
		return model.TradingWeekResult{Reason: "No trading days found in the specified week."}
	}

	var monOK, friOK bool
	for _, d := range days {
		if timeutil.SameDay(d, mon) {
			monOK = true
		}
		if timeutil.SameDay(d, fri) {
			friOK = true
		}
	}

	res = model.TradingWeekResult{MondayIsTradingDay: monOK, FridayIsTradingDay: friOK}
	switch {
	case !monOK && !friOK:
		res.Reason = fmt.Sprintf("HARD BLOCK: Both Monday (%s) and Friday (%s) are market holidays.", monday, friday)
	case !monOK:
		res.Reason = fmt.Sprintf("HARD BLOCK: Monday (%s) is a market holiday.", monday)
	case !friOK:
		res.Reason = fmt.Sprintf("HARD BLOCK: Friday (%s) is a market holiday.", friday)
	default:
		res.Allowed = true
		res.Reason = fmt.Sprintf("Trade week allowed: Monday (%s) and Friday (%s) are both trading days.", monday, friday)
	}
	return res
}

type lookupResult struct {
	days []time.Time
	err  error
}

// lookup 在独立 goroutine 中查询日历，超时后直接放弃结果
// 即使日历实现不响应 ctx 也能按时返回
func (g *Gate) lookup(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ch := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- lookupResult{err: fmt.Errorf("calendar panic: %v", r)}
			}
		}()
		days, err := g.cal.TradingDays(ctx, start, end)
		ch <- lookupResult{days: days, err: err}
	}()

	select {
	case r := <-ch:
		return r.days, r.err
	case <-ctx.Done():
		return nil, errLookupTimeout
	}
}
