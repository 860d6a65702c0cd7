package holiday

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"theta-guard/internal/util/timeutil"
)

// emptyMarker 空交易日列表的缓存值
const emptyMarker = "-"

// CachedCalendar 带 Redis 缓存的交易日历
// 缓存读写失败只记录日志并回落到底层日历，不影响判定
type CachedCalendar struct {
	inner  Calendar
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewCachedCalendar 创建缓存日历
func NewCachedCalendar(inner Calendar, client redis.Cmdable, ttl time.Duration, prefix string, logger *zap.Logger) *CachedCalendar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCalendar{inner: inner, client: client, ttl: ttl, prefix: prefix, logger: logger}
}

// Key 返回区间对应的缓存键
func (c *CachedCalendar) Key(start, end time.Time) string {
	return c.prefix + timeutil.FormatDate(start) + ":" + timeutil.FormatDate(end)
}

// TradingDays 实现 Calendar
func (c *CachedCalendar) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	if c.inner == nil {
		return nil, errors.New("cached calendar: no underlying calendar")
	}
	key := c.Key(start, end)

	if c.client != nil {
		val, err := c.client.Get(ctx, key).Result()
		switch {
		case err == nil:
			days, perr := decodeDays(val)
			if perr == nil {
				return days, nil
			}
			c.logger.Warn("calendar cache entry corrupt", zap.String("key", key), zap.Error(perr))
		case errors.Is(err, redis.Nil):
		default:
			c.logger.Warn("calendar cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	days, err := c.inner.TradingDays(ctx, start, end)
	if err != nil {
		return nil, err
	}

	if c.client != nil {
		if err := c.client.Set(ctx, key, encodeDays(days), c.ttl).Err(); err != nil {
			c.logger.Warn("calendar cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return days, nil
}

func encodeDays(days []time.Time) string {
	if len(days) == 0 {
		return emptyMarker
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = timeutil.FormatDate(d)
	}
	return strings.Join(parts, ",")
}

func decodeDays(val string) ([]time.Time, error) {
	if val == emptyMarker {
		return nil, nil
	}
	parts := strings.Split(val, ",")
	days := make([]time.Time, 0, len(parts))
	for _, p := range parts {
		d, err := timeutil.ParseDate(p)
		if err != nil {
			return nil, fmt.Errorf("decode cached days: %w", err)
		}
		days = append(days, d)
	}
	return days, nil
}
