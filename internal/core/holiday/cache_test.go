package holiday

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-guard/internal/util/timeutil"
)

func weekRange(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	start, err := timeutil.ParseDate("2024-01-08")
	require.NoError(t, err)
	return start, timeutil.FridayOf(start)
}

func TestCachedCalendar_MissThenStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cc := NewCachedCalendar(mustNYSE(t), db, time.Hour, "tg:cal:", nil)
	start, end := weekRange(t)

	key := "tg:cal:2024-01-08:2024-01-12"
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, "2024-01-08,2024-01-09,2024-01-10,2024-01-11,2024-01-12", time.Hour).SetVal("OK")

	days, err := cc.TradingDays(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, days, 5)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedCalendar_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := CalendarFunc(func(ctx context.Context, start, end time.Time) ([]time.Time, error) {
		t.Fatal("inner calendar should not be called on cache hit")
		return nil, nil
	})
	cc := NewCachedCalendar(inner, db, time.Hour, "tg:cal:", nil)
	start, end := weekRange(t)

	mock.ExpectGet(cc.Key(start, end)).SetVal("2024-01-09,2024-01-12")

	days, err := cc.TradingDays(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-01-09", timeutil.FormatDate(days[0]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedCalendar_EmptyMarker(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cc := NewCachedCalendar(mustNYSE(t), db, time.Hour, "", nil)
	start, end := weekRange(t)

	mock.ExpectGet(cc.Key(start, end)).SetVal(emptyMarker)

	days, err := cc.TradingDays(context.Background(), start, end)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestCachedCalendar_RedisDownFallsBack(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cc := NewCachedCalendar(mustNYSE(t), db, time.Hour, "tg:cal:", nil)
	start, end := weekRange(t)
	key := cc.Key(start, end)

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, "2024-01-08,2024-01-09,2024-01-10,2024-01-11,2024-01-12", time.Hour).SetErr(errors.New("connection refused"))

	days, err := cc.TradingDays(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, days, 5)
}

func TestCachedCalendar_CorruptEntry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cc := NewCachedCalendar(mustNYSE(t), db, time.Minute, "tg:cal:", nil)
	start, end := weekRange(t)
	key := cc.Key(start, end)

	mock.ExpectGet(key).SetVal("garbage")
	mock.ExpectSet(key, "2024-01-08,2024-01-09,2024-01-10,2024-01-11,2024-01-12", time.Minute).SetVal("OK")

	days, err := cc.TradingDays(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, days, 5)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedCalendar_InnerErrorNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := CalendarFunc(func(ctx context.Context, start, end time.Time) ([]time.Time, error) {
		return nil, errors.New("upstream down")
	})
	cc := NewCachedCalendar(inner, db, time.Hour, "tg:cal:", nil)
	start, end := weekRange(t)

	mock.ExpectGet(cc.Key(start, end)).SetErr(redis.Nil)

	_, err := cc.TradingDays(context.Background(), start, end)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
