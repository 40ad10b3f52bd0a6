// Package tracker implements the per-round usage store and cost
// accounting: it records every provider call's token usage, computes
// cost per round against a pricing table, and reports cache savings.
package tracker

import (
	"sync"

	"github.com/handoverhq/handover/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
)

// Usage is one provider call's reported token usage.
type Usage = llm.Usage

// CacheSavings is the result of getRoundCacheSavings for a round that
// recorded at least one cache read.
type CacheSavings struct {
	TokensSaved  int
	DollarsSaved float64
	PercentSaved float64
}

// Tracker accumulates Usage records per round and derives cost/savings.
// Round 5's fan-out sub-queries all record under round=5; aggregate
// queries (GetRoundCacheSavings) treat the first recorded usage as the
// representative sub-call rather than summing across the fan-out.
type Tracker struct {
	mu      sync.Mutex
	byRound map[int][]Usage

	costGauge  *prometheus.GaugeVec
	tokenGauge *prometheus.GaugeVec
}

// New returns an empty Tracker, optionally registering Prometheus gauges
// against reg (pass nil to skip metrics registration entirely, e.g. in
// tests).
func New(reg prometheus.Registerer) *Tracker {
	t := &Tracker{byRound: make(map[int][]Usage)}

	t.costGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "handover",
		Subsystem: "tracker",
		Name:      "round_cost_dollars",
		Help:      "Estimated cost in USD of the most recent call recorded for a round.",
	}, []string{"round"})

	t.tokenGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "handover",
		Subsystem: "tracker",
		Name:      "round_tokens_total",
		Help:      "Total input+output tokens recorded for a round.",
	}, []string{"round", "kind"})

	if reg != nil {
		reg.MustRegister(t.costGauge, t.tokenGauge)
	}
	return t
}

// RecordRound appends a Usage record for the given round and updates the
// round's Prometheus gauges.
func (t *Tracker) RecordRound(round int, u Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byRound[round] = append(t.byRound[round], u)

	roundLabel := roundLabel(round)
	if t.costGauge != nil {
		t.costGauge.WithLabelValues(roundLabel).Set(CostOf(u))
	}
	if t.tokenGauge != nil {
		t.tokenGauge.WithLabelValues(roundLabel, "input").Add(float64(u.InputTokens))
		t.tokenGauge.WithLabelValues(roundLabel, "output").Add(float64(u.OutputTokens))
	}
}

// Usages returns all recorded usage for a round, in recording order.
func (t *Tracker) Usages(round int) []Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Usage(nil), t.byRound[round]...)
}

// TotalCost sums CostOf across every recorded usage in every round.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total float64
	for _, usages := range t.byRound {
		for _, u := range usages {
			total += CostOf(u)
		}
	}
	return total
}

// TotalTokens sums input+output tokens across every recorded usage.
func (t *Tracker) TotalTokens() (input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, usages := range t.byRound {
		for _, u := range usages {
			input += u.InputTokens
			output += u.OutputTokens
		}
	}
	return input, output
}

// GetRoundCacheSavings returns nil when the round recorded no cache-read
// tokens; otherwise it reports savings computed from the round's
// representative usage record (the first one recorded).
func (t *Tracker) GetRoundCacheSavings(round int) *CacheSavings {
	t.mu.Lock()
	usages := t.byRound[round]
	t.mu.Unlock()

	if len(usages) == 0 {
		return nil
	}
	u := usages[0]
	if u.CacheReadTokens <= 0 {
		return nil
	}

	pricing, ok := llm.PricingFor(u.Model)
	if !ok {
		return &CacheSavings{TokensSaved: u.CacheReadTokens}
	}

	dollars := float64(u.CacheReadTokens) * 0.9 * pricing.InputPerMillion / 1_000_000.0
	var percent float64
	if u.InputTokens > 0 {
		percent = float64(u.CacheReadTokens) / float64(u.InputTokens)
	}
	return &CacheSavings{
		TokensSaved:  u.CacheReadTokens,
		DollarsSaved: dollars,
		PercentSaved: percent,
	}
}

// CostOf computes a single usage record's cost:
// (input - cacheRead) * inputPrice + cacheRead * 0.1 * inputPrice +
// cacheCreation * 1.25 * inputPrice + output * outputPrice.
// Unknown models fall back to zero.
func CostOf(u Usage) float64 {
	pricing, ok := llm.PricingFor(u.Model)
	if !ok {
		return 0
	}
	inputPerTok := pricing.InputPerMillion / 1_000_000.0
	outputPerTok := pricing.OutputPerMillion / 1_000_000.0

	billableInput := u.InputTokens - u.CacheReadTokens
	if billableInput < 0 {
		billableInput = 0
	}

	cost := float64(billableInput) * inputPerTok
	cost += float64(u.CacheReadTokens) * 0.1 * inputPerTok
	cost += float64(u.CacheCreationTokens) * 1.25 * inputPerTok
	cost += float64(u.OutputTokens) * outputPerTok
	return cost
}

func roundLabel(round int) string {
	switch round {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	case 4:
		return "4"
	case 5:
		return "5"
	case 6:
		return "6"
	default:
		return "unknown"
	}
}
