package tradier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-guard/internal/core/model"
	"theta-guard/internal/source"
	"theta-guard/internal/util/timeutil"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1/", Token: "tok", Timeout: time.Second, BreakerFailures: 2}, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{Token: "x"}, nil)
	assert.Error(t, err)
	_, err = NewClient(Config{BaseURL: "http://x"}, nil)
	assert.Error(t, err)
}

func TestDailyCloses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/history", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "SPX", r.URL.Query().Get("symbol"))
		assert.Equal(t, "daily", r.URL.Query().Get("interval"))
		assert.Equal(t, "2024-01-05", r.URL.Query().Get("end"))
		assert.Equal(t, "2023-12-21", r.URL.Query().Get("start"))
		writeJSON(w, `{"history":{"day":[{"date":"2024-01-03","close":4704.81},{"date":"2024-01-04","close":null},{"date":"2024-01-05","close":4697.24}]}}`)
	})
	end, _ := timeutil.ParseDate("2024-01-05")
	closes, err := c.DailyCloses(context.Background(), end, 15)
	require.NoError(t, err)
	assert.Equal(t, []float64{4704.81, 4697.24}, closes)
}

func TestDailyCloses_SingleAndNull(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeJSON(w, `{"history":{"day":{"date":"2024-01-05","close":4697.24}}}`)
			return
		}
		writeJSON(w, `{"history":"null"}`)
	})
	closes, err := c.DailyCloses(context.Background(), time.Now(), 15)
	require.NoError(t, err)
	assert.Equal(t, []float64{4697.24}, closes)

	_, err = c.DailyCloses(context.Background(), time.Now(), 15)
	assert.ErrorIs(t, err, source.ErrNoData)
}

func TestChain_Normalize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/options/chains", r.URL.Path)
		assert.Equal(t, "2024-01-12", r.URL.Query().Get("expiration"))
		assert.Equal(t, "true", r.URL.Query().Get("greeks"))
		writeJSON(w, `{"options":{"option":[
			{"option_type":"put","strike":4700,"bid":20.1,"ask":20.6,"volume":120,"open_interest":3400,"greeks":{"delta":-0.52}},
			{"option_type":"call","strike":4700,"bid":18.0,"ask":18.4,"greeks":null},
			{"option_type":"put","strike":4650,"bid":null,"ask":9.1,"greeks":{"delta":-0.3}},
			{"option_type":"straddle","strike":4600,"bid":1,"ask":2}
		]}}`)
	})
	exp, _ := timeutil.ParseDate("2024-01-12")
	chain, err := c.Chain(context.Background(), exp)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, model.KindPut, chain[0].Kind)
	require.NotNil(t, chain[0].Delta)
	assert.Equal(t, -0.52, *chain[0].Delta)
	require.NotNil(t, chain[0].Volume)
	assert.Equal(t, int64(120), *chain[0].Volume)
	require.NotNil(t, chain[0].OpenInterest)
	assert.Equal(t, int64(3400), *chain[0].OpenInterest)
	assert.Equal(t, model.KindCall, chain[1].Kind)
	assert.Nil(t, chain[1].Delta)
	assert.Nil(t, chain[1].Volume)
}

func TestChain_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"options":null}`)
	})
	_, err := c.Chain(context.Background(), time.Now())
	assert.ErrorIs(t, err, source.ErrNoData)
}

func TestTradingDays(t *testing.T) {
	var months []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/calendar", r.URL.Path)
		m := r.URL.Query().Get("month")
		months = append(months, m+"/"+r.URL.Query().Get("year"))
		if m == "12" {
			writeJSON(w, `{"calendar":{"month":12,"year":2025,"days":{"day":[
				{"date":"2025-12-29","status":"open"},{"date":"2025-12-30","status":"open"},{"date":"2025-12-31","status":"open"}]}}}`)
			return
		}
		writeJSON(w, `{"calendar":{"month":1,"year":2026,"days":{"day":[
			{"date":"2026-01-01","status":"closed"},{"date":"2026-01-02","status":"open"},{"date":"2026-01-05","status":"open"}]}}}`)
	})
	start, _ := timeutil.ParseDate("2025-12-29")
	end, _ := timeutil.ParseDate("2026-01-02")
	days, err := c.TradingDays(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, []string{"12/2025", "1/2026"}, months)
	var got []string
	for _, d := range days {
		got = append(got, timeutil.FormatDate(d))
	}
	assert.Equal(t, []string{"2025-12-29", "2025-12-30", "2025-12-31", "2026-01-02"}, got)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	for i := 0; i < 2; i++ {
		_, err := c.DailyCloses(context.Background(), time.Now(), 15)
		require.Error(t, err)
	}
	_, err := c.DailyCloses(context.Background(), time.Now(), 15)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"history":{"day":{"date":"2024-01-05","close":1}}}`)
	}))
	defer srv.Close()
	c, err := NewClient(Config{BaseURL: srv.URL, Token: "tok", RequestsPerSec: 0.001}, nil)
	require.NoError(t, err)

	_, err = c.DailyCloses(context.Background(), time.Now(), 15)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.DailyCloses(ctx, time.Now(), 15)
	assert.Error(t, err)
}
