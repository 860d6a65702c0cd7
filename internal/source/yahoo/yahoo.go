// Package yahoo 通过 Yahoo Finance 获取日收盘价，作为 Tradier 之外的备用价格来源。
package yahoo

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"theta-guard/internal/source"
	"theta-guard/internal/util/timeutil"
)

// DefaultSymbol 标普 500 指数
const DefaultSymbol = "^GSPC"

// fetchFunc 获取K线，测试时替换
type fetchFunc func(p *chart.Params) ([]finance.ChartBar, error)

// Source Yahoo 日线价格来源
type Source struct {
	symbol string
	fetch  fetchFunc
}

// New 创建价格来源
func New(symbol string) *Source {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &Source{symbol: symbol, fetch: fetchChart}
}

func fetchChart(p *chart.Params) ([]finance.ChartBar, error) {
	iter := chart.Get(p)
	var bars []finance.ChartBar
	for iter.Next() {
		bars = append(bars, *iter.Bar())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

// DailyCloses 实现 source.PriceSource
// finance-go 不支持 ctx，调用在独立 goroutine 中执行并受 ctx 约束
func (s *Source) DailyCloses(ctx context.Context, end time.Time, lookbackDays int) ([]float64, error) {
	end = timeutil.DateOnly(end)
	start := end.AddDate(0, 0, -lookbackDays)
	// Yahoo 的 end 为开区间
	endExcl := end.AddDate(0, 0, 1)

	params := &chart.Params{
		Symbol:   s.symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&endExcl),
		Interval: datetime.OneDay,
	}

	type result struct {
		bars []finance.ChartBar
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		bars, err := s.fetch(params)
		ch <- result{bars, err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("yahoo %s: %w", s.symbol, ctx.Err())
	}
	if r.err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", s.symbol, r.err)
	}

	closes := make([]float64, 0, len(r.bars))
	for _, b := range r.bars {
		ts := time.Unix(int64(b.Timestamp), 0).UTC()
		if ts.Before(start) || ts.After(endExcl) {
			continue
		}
		v, _ := b.Close.Float64()
		if v <= 0 {
			continue
		}
		closes = append(closes, v)
	}
	if len(closes) == 0 {
		return nil, source.ErrNoData
	}
	return closes, nil
}
