package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theta-guard/internal/core/model"
)

func count(n int64) *int64 { return &n }

func structureOf(net, maxLoss float64) *model.BWBStructure {
	return &model.BWBStructure{
		Type: model.StructurePutCredit,
		Legs: []model.Leg{
			{Side: model.SideSell, Quantity: 2, Kind: model.KindPut, Strike: 5875, Delta: model.Float(-0.30)},
			{Side: model.SideBuy, Quantity: 1, Kind: model.KindPut, Strike: 5900, Delta: model.Float(-0.40)},
			{Side: model.SideBuy, Quantity: 1, Kind: model.KindPut, Strike: 5800, Delta: model.Float(-0.10)},
		},
		NetPremium: net,
		MaxLoss:    model.Float(maxLoss),
		Valid:      true,
	}
}

func liquidChain() []model.OptionRecord {
	return []model.OptionRecord{
		{Kind: model.KindPut, Strike: 5875, Bid: 10.0, Ask: 10.3, Volume: count(400), OpenInterest: count(2500)},
		{Kind: model.KindPut, Strike: 5900, Bid: 14.0, Ask: 14.4, Volume: count(80)},
		{Kind: model.KindPut, Strike: 5800, Bid: 3.0, Ask: 3.2, OpenInterest: count(900)},
	}
}

func statusOf(rep Report, name string) Status {
	for _, c := range rep.Checks {
		if c.Name == name {
			return c.Status
		}
	}
	return ""
}

func TestEvaluate_AllPass(t *testing.T) {
	rep := Evaluate(liquidChain(), structureOf(2.0, 3.0))
	require.True(t, rep.Valid)
	assert.Equal(t, StatusPass, rep.Status)
	// 每条腿 4 项，加权利金与最大亏损
	assert.Len(t, rep.Checks, 14)
}

func TestEvaluate_Warnings(t *testing.T) {
	chain := liquidChain()
	chain[0].Ask = 10.9
	chain[1].Volume = count(5)
	s := structureOf(1.0, 5.0)
	s.Legs[2].Delta = nil

	rep := Evaluate(chain, s)
	require.True(t, rep.Valid)
	assert.Equal(t, StatusWarn, rep.Status)
	assert.Equal(t, StatusWarn, statusOf(rep, "spread_5875"))
	assert.Equal(t, StatusWarn, statusOf(rep, "liquidity_5900"))
	assert.Equal(t, StatusWarn, statusOf(rep, "delta_5800"))
	assert.Equal(t, StatusWarn, statusOf(rep, "credit_threshold"))
	assert.Equal(t, StatusWarn, statusOf(rep, "max_loss_cap"))
}

func TestEvaluate_Failures(t *testing.T) {
	chain := liquidChain()
	chain[0].Ask = 12
	// 倒挂报价
	chain[2].Bid, chain[2].Ask = 3.5, 3.0

	rep := Evaluate(chain, structureOf(2.0, 3.0))
	assert.Equal(t, StatusFail, rep.Status)
	assert.Equal(t, StatusFail, statusOf(rep, "spread_5875"))
	assert.Equal(t, StatusFail, statusOf(rep, "mid_sanity_5800"))
}

func TestEvaluate_MissingChain(t *testing.T) {
	rep := Evaluate(nil, structureOf(2.0, 3.0))
	require.True(t, rep.Valid)
	assert.Equal(t, StatusWarn, rep.Status)
	assert.Equal(t, StatusWarn, statusOf(rep, "spread_5875"))
	assert.Equal(t, StatusWarn, statusOf(rep, "liquidity_5800"))
}

func TestEvaluate_DebitStructure(t *testing.T) {
	s := structureOf(-7, 3.0)
	s.Type = model.StructureCallDebit
	rep := Evaluate(liquidChain(), s)
	assert.Equal(t, StatusPass, statusOf(rep, "credit_threshold"))
}

func TestEvaluate_InvalidStructure(t *testing.T) {
	rep := Evaluate(liquidChain(), nil)
	assert.False(t, rep.Valid)
	assert.Equal(t, StatusNA, rep.Status)
	require.Len(t, rep.Checks, 1)
	assert.Equal(t, "structure_valid", rep.Checks[0].Name)

	rep = Evaluate(liquidChain(), &model.BWBStructure{Valid: true})
	assert.False(t, rep.Valid)
	assert.Equal(t, "legs_present", rep.Checks[0].Name)
}
