package replay

import (
	"context"
	"fmt"

	"breakout-lab/internal/machine"
	"breakout-lab/internal/session"
	"breakout-lab/internal/storage"
)

// Runner loads one session's bars from storage and replays them in order.
type Runner struct {
	candles storage.CandleStore
}

// NewRunner creates a new replay runner.
func NewRunner(candles storage.CandleStore) *Runner {
	return &Runner{candles: candles}
}

// Run replays symbol's bars inside w through engine.
//
// When the bars cannot be loaded or are out of order, the engine receives
// SESSION_START followed by ERROR and Run returns the cause.
// Context cancellation stops delivery between events.
func (r *Runner) Run(ctx context.Context, symbol string, w session.Window, engine ReplayEngine) error {
	candles, err := r.candles.GetByTimeRange(ctx, symbol, w.ZoneStartMs, w.ExecutionEndMs)
	if err == nil {
		SortCandles(candles)
		err = ValidateOrdering(candles)
	}
	if err != nil {
		err = fmt.Errorf("load bars %s %s: %w", symbol, w.Date, err)
		if ferr := fail(ctx, symbol, w, engine, err); ferr != nil {
			return ferr
		}
		return err
	}

	for _, ev := range BuildSessionEvents(symbol, w, candles) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := engine.OnEvent(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func fail(ctx context.Context, symbol string, w session.Window, engine ReplayEngine, cause error) error {
	if err := engine.OnEvent(ctx, machine.SessionStart(w.Date, symbol, w.ZoneEndMs)); err != nil {
		return err
	}
	return engine.OnEvent(ctx, machine.Error(cause.Error()))
}
