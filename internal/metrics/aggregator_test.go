package metrics

import (
	"context"
	"errors"
	"testing"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage/memory"
)

func TestAggregator_ComputeForSymbol(t *testing.T) {
	ctx := context.Background()
	store := memory.NewOutcomeStore()
	for _, o := range sample() {
		o := o
		if err := store.Insert(ctx, &o); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	agg, outcomes, err := NewAggregator(store).ComputeForSymbol(ctx, "SPY")
	if err != nil {
		t.Fatalf("ComputeForSymbol failed: %v", err)
	}
	if agg.TotalTrades != 5 || len(outcomes) != 5 {
		t.Errorf("expected 5 trades, got %d/%d", agg.TotalTrades, len(outcomes))
	}
	if agg.MaxConsecutiveLosses != 2 {
		t.Errorf("expected MaxConsecutiveLosses 2, got %d", agg.MaxConsecutiveLosses)
	}
	if outcomes[0].TradeID != "d1" {
		t.Errorf("expected outcomes in exit order, first is %s", outcomes[0].TradeID)
	}
}

func TestAggregator_NoTrades(t *testing.T) {
	_, _, err := NewAggregator(memory.NewOutcomeStore()).ComputeForSymbol(context.Background(), "SPY")
	if !errors.Is(err, ErrNoTrades) {
		t.Errorf("expected ErrNoTrades, got %v", err)
	}
}

func TestComputeByDirection(t *testing.T) {
	outcomes := sample()
	outcomes[0].Direction = domain.DirectionShort

	byDir := ComputeByDirection(outcomes)
	if len(byDir) != 2 {
		t.Fatalf("expected 2 directions, got %d", len(byDir))
	}
	if byDir[domain.DirectionShort].TotalTrades != 1 || byDir[domain.DirectionShort].Win3R != 1 {
		t.Errorf("unexpected SHORT aggregate: %+v", byDir[domain.DirectionShort])
	}
	if byDir[domain.DirectionLong].TotalTrades != 4 {
		t.Errorf("expected 4 LONG trades, got %d", byDir[domain.DirectionLong].TotalTrades)
	}
}
