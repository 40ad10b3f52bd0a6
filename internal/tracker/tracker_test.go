package tracker

import (
	"testing"

	"github.com/handoverhq/handover/internal/llm"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundAccumulatesUsages(t *testing.T) {
	tr := New(nil)
	tr.RecordRound(1, Usage{Model: "gpt-4o", InputTokens: 100, OutputTokens: 50})
	tr.RecordRound(1, Usage{Model: "gpt-4o", InputTokens: 200, OutputTokens: 75})

	usages := tr.Usages(1)
	require.Len(t, usages, 2)
	require.Empty(t, tr.Usages(2))
}

func TestTotalCostSumsAcrossRounds(t *testing.T) {
	tr := New(nil)
	tr.RecordRound(1, Usage{Model: "gpt-4o", InputTokens: 1_000_000, OutputTokens: 0})
	tr.RecordRound(2, Usage{Model: "gpt-4o", InputTokens: 0, OutputTokens: 1_000_000})

	require.InDelta(t, 2.50+10.00, tr.TotalCost(), 0.0001)
}

func TestTotalCostZeroForUnknownModel(t *testing.T) {
	tr := New(nil)
	tr.RecordRound(1, Usage{Model: "llama3-local", InputTokens: 5000, OutputTokens: 5000})
	require.Zero(t, tr.TotalCost())
}

func TestTotalTokensSumsInputAndOutput(t *testing.T) {
	tr := New(nil)
	tr.RecordRound(1, Usage{Model: "gpt-4o", InputTokens: 100, OutputTokens: 20})
	tr.RecordRound(5, Usage{Model: "gpt-4o", InputTokens: 300, OutputTokens: 40})

	in, out := tr.TotalTokens()
	require.Equal(t, 400, in)
	require.Equal(t, 60, out)
}

func TestCostOfAppliesCacheDiscountAndCreationSurcharge(t *testing.T) {
	u := Usage{
		Model:               "gpt-4o",
		InputTokens:         1000,
		CacheReadTokens:     200,
		CacheCreationTokens: 100,
		OutputTokens:        0,
	}
	pricing, _ := llm.PricingFor("gpt-4o")
	inputPerTok := pricing.InputPerMillion / 1_000_000.0

	want := float64(1000-200)*inputPerTok + float64(200)*0.1*inputPerTok + float64(100)*1.25*inputPerTok
	require.InDelta(t, want, CostOf(u), 0.0000001)
}

func TestGetRoundCacheSavingsNilWithoutCacheReads(t *testing.T) {
	tr := New(nil)
	tr.RecordRound(1, Usage{Model: "gpt-4o", InputTokens: 100, OutputTokens: 10})
	require.Nil(t, tr.GetRoundCacheSavings(1))
}

func TestGetRoundCacheSavingsNilForUnrecordedRound(t *testing.T) {
	tr := New(nil)
	require.Nil(t, tr.GetRoundCacheSavings(6))
}

func TestGetRoundCacheSavingsComputesDollarsAndPercent(t *testing.T) {
	tr := New(nil)
	tr.RecordRound(1, Usage{Model: "gpt-4o", InputTokens: 1000, CacheReadTokens: 400, OutputTokens: 10})

	savings := tr.GetRoundCacheSavings(1)
	require.NotNil(t, savings)
	require.Equal(t, 400, savings.TokensSaved)
	require.InDelta(t, 0.4, savings.PercentSaved, 0.0001)
	require.Greater(t, savings.DollarsSaved, 0.0)
}
