package csvfile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-guard/internal/source"
	"theta-guard/internal/util/timeutil"
)

const sample = `date,close
2024-01-09,4756.5
2024-01-08,4763.54
bad-date,1
2024-01-05,
2024-01-04,-3
2024-01-05,4697.24
2024-01-10,"4783.45"
2024-01-15,4790
`

func TestRead(t *testing.T) {
	s, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, s, 5)

	assert.Equal(t, "2024-01-05", timeutil.FormatDate(s[0].Date))
	assert.Equal(t, "2024-01-15", timeutil.FormatDate(s[4].Date))
	assert.Equal(t, 4763.54, s[1].Close)
	assert.Equal(t, []int{1, 4}, s.Mondays())
}

func TestRead_HeaderOrderAndCase(t *testing.T) {
	s, err := Read(strings.NewReader("Close,Open,DATE\n10,9,2024-02-05\n"))
	require.NoError(t, err)
	require.Len(t, s, 1)
	assert.Equal(t, 10.0, s[0].Close)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.True(t, errors.Is(err, source.ErrNoData))

	_, err = Read(strings.NewReader("day,price\n2024-01-01,1\n"))
	assert.Error(t, err)
}

func TestLookback(t *testing.T) {
	s, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []float64{4697.24, 4763.54}, s.Lookback(1, 15))
	assert.Equal(t, []float64{4783.45, 4790}, s.Lookback(4, 2))
	assert.Nil(t, s.Lookback(9, 3))
	assert.Nil(t, s.Lookback(2, 0))
}

func TestIndexOnOrBefore(t *testing.T) {
	s, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	day := func(v string) time.Time {
		d, err := timeutil.ParseDate(v)
		require.NoError(t, err)
		return d
	}
	assert.Equal(t, 1, s.IndexOnOrBefore(day("2024-01-08")))
	// 周末与缺失日回退到之前最近的收盘价
	assert.Equal(t, 0, s.IndexOnOrBefore(day("2024-01-07")))
	assert.Equal(t, 3, s.IndexOnOrBefore(day("2024-01-12")))
	assert.Equal(t, 4, s.IndexOnOrBefore(day("2024-02-01")))
	assert.Equal(t, -1, s.IndexOnOrBefore(day("2024-01-01")))
}

func TestDailyCloses(t *testing.T) {
	s, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	end, _ := timeutil.ParseDate("2024-01-09")
	closes, err := s.DailyCloses(context.Background(), end, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{4697.24, 4763.54, 4756.5}, closes)

	far, _ := timeutil.ParseDate("2030-01-01")
	_, err = s.DailyCloses(context.Background(), far, 5)
	assert.ErrorIs(t, err, source.ErrNoData)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.DailyCloses(ctx, end, 4)
	assert.ErrorIs(t, err, context.Canceled)
}
