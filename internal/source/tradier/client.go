// Package tradier 提供 Tradier 行情 API 的只读客户端。
// 仅包含行情端点（历史、期权链、交易日历），不存在任何下单或账户端点。
package tradier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"theta-guard/internal/core/model"
	"theta-guard/internal/source"
	"theta-guard/internal/util/timeutil"
)

// 行情端点
const (
	endpointHistory  = "markets/history"
	endpointChains   = "markets/options/chains"
	endpointCalendar = "markets/calendar"
)

// Config 客户端配置
type Config struct {
	// BaseURL 如 https://api.tradier.com/v1/
	BaseURL string
	// Token 访问令牌
	Token string
	// Symbol 标的，默认 SPX
	Symbol string
	// Timeout 单次请求超时
	Timeout time.Duration
	// RequestsPerSec 每秒请求上限，<=0 表示不限速
	RequestsPerSec float64
	// BreakerFailures 连续失败多少次后熔断，<=0 使用默认值 3
	BreakerFailures int
}

// Client Tradier 只读客户端
type Client struct {
	http    *resty.Client
	symbol  string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient 创建客户端
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("tradier: base url is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("tradier: token is required")
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "SPX"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.Token).
		SetHeader("Accept", "application/json")

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	failures := uint32(cfg.BreakerFailures)
	st := gobreaker.Settings{
		Name:     "tradier",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &Client{
		http:    hc,
		symbol:  cfg.Symbol,
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(st),
		logger:  logger,
	}, nil
}

// get 执行一次 GET：限速 → 熔断 → 请求；非 2xx 视为失败
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("tradier %s: rate limit wait: %w", endpoint, err)
		}
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(out).
			Get(endpoint)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("tradier %s: %w", endpoint, err)
	}
	return nil
}

// DailyCloses 实现 source.PriceSource
func (c *Client) DailyCloses(ctx context.Context, end time.Time, lookbackDays int) ([]float64, error) {
	end = timeutil.DateOnly(end)
	start := end.AddDate(0, 0, -lookbackDays)

	var out historyResponse
	err := c.get(ctx, endpointHistory, map[string]string{
		"symbol":   c.symbol,
		"interval": "daily",
		"start":    timeutil.FormatDate(start),
		"end":      timeutil.FormatDate(end),
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.History.Value == nil || len(out.History.Value.Day) == 0 {
		return nil, source.ErrNoData
	}

	closes := make([]float64, 0, len(out.History.Value.Day))
	for _, d := range out.History.Value.Day {
		if d.Close != nil {
			closes = append(closes, *d.Close)
		}
	}
	if len(closes) == 0 {
		return nil, source.ErrNoData
	}
	return closes, nil
}

// Chain 实现 source.ChainSource
func (c *Client) Chain(ctx context.Context, expiration time.Time) ([]model.OptionRecord, error) {
	var out chainResponse
	err := c.get(ctx, endpointChains, map[string]string{
		"symbol":     c.symbol,
		"expiration": timeutil.FormatDate(expiration),
		"greeks":     "true",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Options.Value == nil || len(out.Options.Value.Option) == 0 {
		return nil, source.ErrNoData
	}
	chain := normalize(out.Options.Value.Option)
	if len(chain) == 0 {
		return nil, source.ErrNoData
	}
	return chain, nil
}

// normalize 丢弃缺少类型、行权价或报价的记录；delta 可缺失
func normalize(raw []rawOption) []model.OptionRecord {
	out := make([]model.OptionRecord, 0, len(raw))
	for _, o := range raw {
		kind, ok := model.ParseOptionKind(o.OptionType)
		if !ok || o.Strike == nil || o.Bid == nil || o.Ask == nil {
			continue
		}
		rec := model.OptionRecord{
			Kind:         kind,
			Strike:       *o.Strike,
			Bid:          *o.Bid,
			Ask:          *o.Ask,
			Volume:       o.Volume,
			OpenInterest: o.OpenInt,
		}
		if o.Greeks != nil && o.Greeks.Delta != nil {
			d := *o.Greeks.Delta
			rec.Delta = &d
		}
		out = append(out, rec)
	}
	return out
}

// TradingDays 实现 holiday.Calendar，按月查询交易所日历
func (c *Client) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	start, end = timeutil.DateOnly(start), timeutil.DateOnly(end)
	if end.Before(start) {
		return nil, fmt.Errorf("tradier calendar: invalid range")
	}

	var days []time.Time
	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(end) {
		var out calendarResponse
		err := c.get(ctx, endpointCalendar, map[string]string{
			"month": strconv.Itoa(int(month.Month())),
			"year":  strconv.Itoa(month.Year()),
		}, &out)
		if err != nil {
			return nil, err
		}
		if out.Calendar.Value != nil {
			for _, d := range out.Calendar.Value.Days.Day {
				if !strings.EqualFold(d.Status, "open") {
					continue
				}
				t, err := timeutil.ParseDate(d.Date)
				if err != nil {
					c.logger.Warn("tradier calendar: bad date", zap.String("date", d.Date))
					continue
				}
				if !t.Before(start) && !t.After(end) {
					days = append(days, t)
				}
			}
		}
		month = month.AddDate(0, 1, 0)
	}
	return days, nil
}
