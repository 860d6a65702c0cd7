package yahoo

import (
	"context"
	"errors"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-guard/internal/source"
	"theta-guard/internal/util/timeutil"
)

func bar(date string, close float64) finance.ChartBar {
	d, _ := timeutil.ParseDate(date)
	return finance.ChartBar{Timestamp: int(d.Add(14 * time.Hour).Unix()), Close: decimal.NewFromFloat(close)}
}

func TestDailyCloses(t *testing.T) {
	s := New("")
	var got *chart.Params
	s.fetch = func(p *chart.Params) ([]finance.ChartBar, error) {
		got = p
		return []finance.ChartBar{
			bar("2024-01-03", 4704.81),
			bar("2024-01-04", 0), // 缺失
			bar("2024-01-05", 4697.24),
		}, nil
	}
	end, _ := timeutil.ParseDate("2024-01-05")
	closes, err := s.DailyCloses(context.Background(), end, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{4704.81, 4697.24}, closes)
	require.NotNil(t, got)
	assert.Equal(t, DefaultSymbol, got.Symbol)
}

func TestDailyCloses_Errors(t *testing.T) {
	s := New("^SPX")
	s.fetch = func(p *chart.Params) ([]finance.ChartBar, error) { return nil, errors.New("http 429") }
	_, err := s.DailyCloses(context.Background(), time.Now(), 10)
	assert.ErrorContains(t, err, "http 429")

	s.fetch = func(p *chart.Params) ([]finance.ChartBar, error) { return nil, nil }
	_, err = s.DailyCloses(context.Background(), time.Now(), 10)
	assert.ErrorIs(t, err, source.ErrNoData)
}

func TestDailyCloses_ContextCancelled(t *testing.T) {
	s := New("")
	release := make(chan struct{})
	defer close(release)
	s.fetch = func(p *chart.Params) ([]finance.ChartBar, error) {
		<-release
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.DailyCloses(ctx, time.Now(), 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
