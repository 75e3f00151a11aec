package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"breakout-lab/internal/backtest"
	"breakout-lab/internal/domain"
	"breakout-lab/internal/metrics"
	"breakout-lab/internal/storage"
)

// Generator produces reports from stored results.
type Generator struct {
	stores     storage.Stores
	aggregator *metrics.Aggregator
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(stores storage.Stores) *Generator {
	return &Generator{
		stores:     stores,
		aggregator: metrics.NewAggregator(stores.Outcomes),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over every stored outcome of symbol.
// When runID is non-empty only sessions of that run are included.
// Sessions that produced no trade are not reachable from outcomes and
// are therefore not counted.
func (g *Generator) Generate(ctx context.Context, symbol, runID string) (*Report, error) {
	agg, outcomes, err := g.aggregator.ComputeForSymbol(ctx, symbol)
	if errors.Is(err, metrics.ErrNoTrades) {
		agg, err = &domain.StrategyAggregate{Symbol: symbol}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("aggregate outcomes: %w", err)
	}

	sessions, err := g.loadSessions(ctx, outcomes, runID)
	if err != nil {
		return nil, err
	}
	if runID != "" {
		agg = metrics.Compute(collectOutcomes(sessions))
		agg.Symbol = symbol
	}

	report := Build(runID, symbol, sessions, agg)
	report.GeneratedAt = g.now()
	return report, nil
}

// loadSessions groups outcomes by session in exit order of first appearance
// and joins each session's record and trades.
func (g *Generator) loadSessions(ctx context.Context, outcomes []domain.OutcomeRecord, runID string) ([]backtest.SessionResult, error) {
	var order []string
	bySession := make(map[string]*backtest.SessionResult)
	for _, o := range outcomes {
		res, ok := bySession[o.SessionID]
		if !ok {
			rec, err := g.stores.Sessions.GetByID(ctx, o.SessionID)
			if err != nil {
				return nil, fmt.Errorf("load session %s: %w", o.SessionID, err)
			}
			if runID != "" && rec.RunID != runID {
				bySession[o.SessionID] = nil
				continue
			}
			trades, err := g.stores.Trades.GetBySessionID(ctx, o.SessionID)
			if err != nil {
				return nil, fmt.Errorf("load trades %s: %w", o.SessionID, err)
			}
			res = &backtest.SessionResult{Record: *rec}
			for _, t := range trades {
				res.Trades = append(res.Trades, *t)
			}
			bySession[o.SessionID] = res
			order = append(order, o.SessionID)
		}
		if res == nil {
			continue
		}
		res.Outcomes = append(res.Outcomes, o)
	}

	sessions := make([]backtest.SessionResult, 0, len(order))
	for _, id := range order {
		sessions = append(sessions, *bySession[id])
	}
	return sessions, nil
}
