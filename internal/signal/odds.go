// Package signal derives display-grade market signals (odds, momentum,
// consensus, NVI) from pool ledger reads and AI-confidence input. It is
// read-only with respect to bets and pools; nothing here feeds back into
// settlement arithmetic, so float64 is acceptable throughout.
package signal

import (
	"storypool/internal/models"
	"storypool/internal/repository"
)

// CurrentOdds maps each choice to its share of the total pool. Choices with
// no bets yet appear with 0; an empty pool yields all zeros.
func CurrentOdds(choices []models.Choice, agg *repository.PoolAggregates) map[string]float64 {
	odds := make(map[string]float64, len(choices))
	for _, c := range choices {
		odds[c.ID] = 0
	}
	if agg == nil || agg.TotalPool.IsZero() {
		return odds
	}
	total, _ := agg.TotalPool.Float64()
	for choiceID, ca := range agg.PerChoice {
		t, _ := ca.Total.Float64()
		odds[choiceID] = t / total
	}
	return odds
}

// ConsensusStrength is the Herfindahl concentration of the odds: sum of
// squared shares. 1 means all stake on one choice; a uniform n-way pool
// scores 1/n, which is the floor for n choices, not 0.
func ConsensusStrength(odds map[string]float64) float64 {
	sum := 0.0
	for _, p := range odds {
		sum += p * p
	}
	return sum
}
