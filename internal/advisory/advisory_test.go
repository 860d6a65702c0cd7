package advisory

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-guard/internal/advisory/gamma"
	"theta-guard/internal/core/model"
	"theta-guard/internal/pipeline"
)

func allowed() pipeline.WeekResult {
	return pipeline.WeekResult{
		Monday: "2024-01-08",
		Week:   "2024-W02",
		Indicator: model.IndicatorState{
			ShortValue: model.Float(5890),
			LongValue:  model.Float(5870),
			Above:      true,
			Slope:      model.SlopePositive,
			Valid:      true,
		},
		Entry: model.EntryDecision{Decision: model.DecisionTradeAllowed},
		Structure: &model.BWBStructure{
			Type: model.StructurePutCredit,
			Legs: []model.Leg{
				{Side: model.SideSell, Quantity: 2, Kind: model.KindPut, Strike: 5800, Delta: model.Float(-0.3)},
				{Side: model.SideBuy, Quantity: 1, Kind: model.KindPut, Strike: 5825, Delta: model.Float(-0.4)},
				{Side: model.SideBuy, Quantity: 1, Kind: model.KindPut, Strike: 5725, Delta: model.Float(-0.1)},
			},
			NetPremium: 2,
			MaxLoss:    model.Float(3),
			Valid:      true,
		},
	}
}

func TestCompute_Allowed(t *testing.T) {
	res := allowed()
	l := Compute(res, []float64{5850, 5900}, nil, Params{AccountSize: 50000, MaxRiskPct: 0.01}, nil)

	require.False(t, l.Empty())
	require.NotNil(t, l.Confidence)
	assert.True(t, l.Confidence.Valid)
	require.NotNil(t, l.Gamma)
	// 5900 - 5800 = 100 >= 88.5
	assert.Equal(t, gamma.LevelNormal, l.Gamma.Level)
	require.NotNil(t, l.Quality)
	assert.True(t, l.Quality.Valid)

	require.NotNil(t, l.Sizing)
	require.True(t, l.Sizing.Valid)
	assert.Equal(t, 1, *l.Sizing.Contracts)
	require.NotNil(t, l.Sizing.Risk)
	assert.Equal(t, 200.0, *l.Sizing.Risk.TotalCredit)
	assert.Equal(t, 0.67, *l.Sizing.Risk.RewardToRisk)
}

func TestCompute_NotAllowed(t *testing.T) {
	res := allowed()
	res.Entry.Decision = model.DecisionNoTrade
	assert.True(t, Compute(res, []float64{5900}, nil, Params{AccountSize: 50000, MaxRiskPct: 0.01}, nil).Empty())
}

func TestCompute_InvalidStructure(t *testing.T) {
	res := allowed()
	res.Structure = &model.BWBStructure{Type: model.StructurePutCredit, Reason: "no candidate"}
	l := Compute(res, []float64{5900}, nil, Params{AccountSize: 50000, MaxRiskPct: 0.01}, nil)

	require.NotNil(t, l.Confidence)
	assert.False(t, l.Confidence.Valid)
	assert.False(t, l.Quality.Valid)
	assert.False(t, l.Gamma.Valid)
	assert.False(t, l.Sizing.Valid)
	assert.Nil(t, l.Sizing.Risk)
}

func TestSpotProxy(t *testing.T) {
	assert.Nil(t, SpotProxy(nil))
	assert.Equal(t, 3.0, *SpotProxy([]float64{1, 2, 3}))
}

func TestCompute_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("参考信息不改变评估结果", prop.ForAll(
		func(spot, account float64) bool {
			res := allowed()
			before := *res.Structure
			Compute(res, []float64{spot}, nil, Params{AccountSize: account, MaxRiskPct: 0.01}, nil)
			after := *res.Structure
			return res.Entry.Decision == model.DecisionTradeAllowed &&
				before.NetPremium == after.NetPremium &&
				*before.MaxLoss == *after.MaxLoss &&
				len(before.Legs) == len(after.Legs)
		},
		gen.Float64Range(1, 10000),
		gen.Float64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}
