package metrics

import (
	"context"
	"errors"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// ErrNoTrades is returned when no outcomes are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator computes strategy aggregates from stored outcomes.
type Aggregator struct {
	outcomes storage.OutcomeStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(outcomes storage.OutcomeStore) *Aggregator {
	return &Aggregator{outcomes: outcomes}
}

// ComputeForSymbol aggregates every stored outcome of symbol.
// Returns ErrNoTrades if none exist.
func (a *Aggregator) ComputeForSymbol(ctx context.Context, symbol string) (*domain.StrategyAggregate, []domain.OutcomeRecord, error) {
	stored, err := a.outcomes.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	if len(stored) == 0 {
		return nil, nil, ErrNoTrades
	}

	outcomes := make([]domain.OutcomeRecord, len(stored))
	for i, o := range stored {
		outcomes[i] = *o
	}

	agg := Compute(outcomes)
	agg.Symbol = symbol
	return agg, outcomes, nil
}

// ComputeByDirection aggregates outcomes separately for LONG and SHORT.
// Directions without outcomes are omitted.
func ComputeByDirection(outcomes []domain.OutcomeRecord) map[domain.Direction]*domain.StrategyAggregate {
	groups := make(map[domain.Direction][]domain.OutcomeRecord)
	for _, o := range outcomes {
		groups[o.Direction] = append(groups[o.Direction], o)
	}

	result := make(map[domain.Direction]*domain.StrategyAggregate, len(groups))
	for dir, group := range groups {
		result[dir] = Compute(group)
	}
	return result
}
