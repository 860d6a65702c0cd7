// Package source 定义行情数据来源接口。
// 实现方负责网络与格式细节；核心只消费校验后的价格序列与期权链。
package source

import (
	"context"
	"errors"
	"time"

	"theta-guard/internal/core/model"
)

// ErrNoData 数据源无可用数据
var ErrNoData = errors.New("source: no data")

// PriceSource 日收盘价来源
type PriceSource interface {
	// DailyCloses 返回截至 end（含）往前 lookbackDays 个自然日内的收盘价，旧到新
	DailyCloses(ctx context.Context, end time.Time, lookbackDays int) ([]float64, error)
}

// ChainSource 期权链来源
type ChainSource interface {
	// Chain 返回指定到期日的完整期权链
	Chain(ctx context.Context, expiration time.Time) ([]model.OptionRecord, error)
}

// Fallback 按顺序尝试多个价格来源，返回第一个成功的结果
type Fallback []PriceSource

// DailyCloses 实现 PriceSource
func (f Fallback) DailyCloses(ctx context.Context, end time.Time, lookbackDays int) ([]float64, error) {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		closes, err := s.DailyCloses(ctx, end, lookbackDays)
		if err == nil && len(closes) > 0 {
			return closes, nil
		}
		if err == nil {
			err = ErrNoData
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNoData
	}
	return nil, errors.Join(errs...)
}
