package gamma

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-guard/internal/core/model"
)

func TestCompute_Levels(t *testing.T) {
	move := MoveInputs{ExpectedMove: model.Float(60)}
	tests := []struct {
		spot     float64
		level    Level
		distance float64
	}{
		{5950, LevelNormal, 75},
		{5920, LevelElevated, 45},
		{5890, LevelHigh, 15},
	}
	for _, tt := range tests {
		w := Compute(model.Float(tt.spot), model.Float(5875), move)
		require.True(t, w.Valid, w.Detail)
		assert.Equal(t, tt.level, w.Level)
		assert.Equal(t, tt.distance, *w.Distance)
		assert.Equal(t, SourceProvided, w.MoveSource)
		assert.Contains(t, w.Detail, "below spot")
	}
}

func TestCompute_ExpectedMoveSources(t *testing.T) {
	w := Compute(model.Float(5950), model.Float(5875), MoveInputs{IV: model.Float(0.15), DTE: 4})
	require.True(t, w.Valid)
	assert.Equal(t, SourceIV, w.MoveSource)
	assert.Equal(t, 93.43, *w.ExpectedMove)
	assert.Equal(t, LevelElevated, w.Level)

	w = Compute(model.Float(5950), model.Float(5875), MoveInputs{})
	require.True(t, w.Valid)
	assert.Equal(t, SourceFallback, w.MoveSource)
	assert.Equal(t, 89.25, *w.ExpectedMove)

	// DTE 缺失时 IV 不可用
	_, src := ExpectedMove(5950, MoveInputs{IV: model.Float(0.15)})
	assert.Equal(t, SourceFallback, src)
}

func TestCompute_Invalid(t *testing.T) {
	w := Compute(nil, model.Float(5875), MoveInputs{})
	assert.False(t, w.Valid)
	assert.Equal(t, LevelNA, w.Level)
	assert.Contains(t, w.Detail, "Spot")

	w = Compute(model.Float(5950), nil, MoveInputs{})
	assert.False(t, w.Valid)
	assert.Contains(t, w.Detail, "Short strike")

	w = Compute(model.Float(math.NaN()), model.Float(5875), MoveInputs{})
	assert.False(t, w.Valid)
}

func TestShortStrike(t *testing.T) {
	s := &model.BWBStructure{Legs: []model.Leg{
		{Side: model.SideBuy, Quantity: 1, Strike: 5900},
		{Side: model.SideSell, Quantity: 2, Strike: 5875},
		{Side: model.SideBuy, Quantity: 1, Strike: 5800},
	}}
	k := ShortStrike(s)
	require.NotNil(t, k)
	assert.Equal(t, 5875.0, *k)

	assert.Nil(t, ShortStrike(nil))
	assert.Nil(t, ShortStrike(&model.BWBStructure{}))
}

func TestCompute_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("距离越近级别不会越低", prop.ForAll(
		func(spot, d1, d2 float64) bool {
			near, far := math.Min(d1, d2), math.Max(d1, d2)
			rank := map[Level]int{LevelNormal: 0, LevelElevated: 1, LevelHigh: 2}
			a := Compute(&spot, model.Float(spot-near), MoveInputs{})
			b := Compute(&spot, model.Float(spot-far), MoveInputs{})
			return a.Valid && b.Valid && rank[a.Level] >= rank[b.Level]
		},
		gen.Float64Range(3000, 7000),
		gen.Float64Range(0, 500),
		gen.Float64Range(0, 500),
	))

	properties.TestingRun(t)
}
