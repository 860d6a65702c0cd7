package sizing

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

func TestRecommend(t *testing.T) {
	r := Recommend(50000, 0.01, model.Float(3.5))
	require.True(t, r.Valid)
	assert.Equal(t, 1, *r.Contracts)
	assert.Equal(t, 500.0, *r.RiskBudget)
	assert.Equal(t, 350.0, *r.RiskUsed)
	assert.Equal(t, ForwardTestNote, r.ForwardTestNote)
	assert.Contains(t, r.Detail, "up to 1 contract(s)")
}

func TestRecommend_InsufficientBudget(t *testing.T) {
	r := Recommend(5000, 0.005, model.Float(4))
	require.True(t, r.Valid)
	assert.Equal(t, 0, *r.Contracts)
	assert.Equal(t, 25.0, *r.RiskBudget)
	assert.Equal(t, 0.0, *r.RiskUsed)
	assert.Contains(t, r.Detail, "insufficient")
}

func TestRecommend_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		account float64
		pct     float64
		maxLoss *float64
		detail  string
	}{
		{"无账户规模", 0, 0.01, model.Float(3.5), "Account size not provided"},
		{"风险比例为 0", 50000, 0, model.Float(3.5), "Invalid risk percentage"},
		{"风险比例超过 1", 50000, 1.5, model.Float(3.5), "Invalid risk percentage"},
		{"最大亏损缺失", 50000, 0.01, nil, "Max loss per contract unknown"},
		{"最大亏损为 0", 50000, 0.01, model.Float(0), "Max loss per contract unknown"},
		{"账户为 NaN", math.NaN(), 0.01, model.Float(3.5), "Account size not provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Recommend(tt.account, tt.pct, tt.maxLoss)
			assert.False(t, r.Valid)
			assert.Nil(t, r.Contracts)
			assert.Contains(t, r.Detail, tt.detail)
		})
	}
}

func TestMetrics(t *testing.T) {
	m := Metrics(50000, model.Float(3.5), model.Float(2), 1)
	require.True(t, m.Valid)
	assert.Equal(t, 350.0, *m.TotalMaxLoss)
	assert.Equal(t, 200.0, *m.TotalCredit)
	assert.Equal(t, 0.7, *m.AccountRiskPct)
	assert.Equal(t, 0.57, *m.RewardToRisk)

	assert.False(t, Metrics(50000, model.Float(3.5), model.Float(2), 0).Valid)

	m = Metrics(0, nil, model.Float(-1), 2)
	require.True(t, m.Valid)
	assert.Nil(t, m.TotalMaxLoss)
	assert.Nil(t, m.RewardToRisk)
	assert.Equal(t, -200.0, *m.TotalCredit)
}

func TestRecommend_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("已用风险不超过风险预算", prop.ForAll(
		func(account, pct, maxLoss float64) bool {
			r := Recommend(account, pct, &maxLoss)
			return r.Valid && *r.Contracts >= 0 && *r.RiskUsed <= *r.RiskBudget+0.01
		},
		gen.Float64Range(1000, 10_000_000),
		gen.Float64Range(0.001, 1),
		gen.Float64Range(0.05, 500),
	))

	properties.Property("再加一手就会超出预算", prop.ForAll(
		func(account, pct, maxLoss float64) bool {
			r := Recommend(account, pct, &maxLoss)
			next := float64(*r.Contracts+1) * maxLoss * ContractMultiplier
			return next > account*pct-1e-6
		},
		gen.Float64Range(1000, 10_000_000),
		gen.Float64Range(0.001, 1),
		gen.Float64Range(0.05, 500),
	))

	properties.TestingRun(t)
}
