package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrices struct {
	closes []float64
	err    error
	calls  int
}

func (s *stubPrices) DailyCloses(ctx context.Context, end time.Time, lookbackDays int) ([]float64, error) {
	s.calls++
	return s.closes, s.err
}

func TestFallback(t *testing.T) {
	primary := &stubPrices{err: errors.New("down")}
	empty := &stubPrices{}
	backup := &stubPrices{closes: []float64{1, 2, 3}}

	closes, err := Fallback{primary, nil, empty, backup}.DailyCloses(context.Background(), time.Now(), 30)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, closes)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, empty.calls)

	_, err = Fallback{primary, empty}.DailyCloses(context.Background(), time.Now(), 30)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Fallback{}.DailyCloses(context.Background(), time.Now(), 30)
	assert.ErrorIs(t, err, ErrNoData)
}
