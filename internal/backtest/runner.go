package backtest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"breakout-lab/internal/config"
	"breakout-lab/internal/domain"
	"breakout-lab/internal/machine"
	"breakout-lab/internal/observability"
	"breakout-lab/internal/replay"
	"breakout-lab/internal/session"
	"breakout-lab/internal/storage"
)

// RunResult holds the sessions of one backtest run in date order.
type RunResult struct {
	RunID    string
	Symbol   string
	From     string
	To       string
	Sessions []SessionResult
}

// Outcomes returns every outcome of the run in session order.
func (r *RunResult) Outcomes() []domain.OutcomeRecord {
	var out []domain.OutcomeRecord
	for _, s := range r.Sessions {
		out = append(out, s.Outcomes...)
	}
	return out
}

// Runner runs backtests over a date range.
type Runner struct {
	replay      *replay.Runner
	stores      *storage.Stores
	machineCfg  machine.Config
	sessionCfg  config.SessionConfig
	concurrency int
	verbose     bool
}

// NewRunner creates a backtest runner. Results are persisted only when
// stores is non-nil.
func NewRunner(replayRunner *replay.Runner, cfg *config.Config, stores *storage.Stores) *Runner {
	concurrency := cfg.Backtest.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		replay:      replayRunner,
		stores:      stores,
		machineCfg:  cfg.MachineConfig(),
		sessionCfg:  cfg.Session,
		concurrency: concurrency,
		verbose:     cfg.Backtest.Verbose,
	}
}

// RunRange runs one session per trading day in [from, to].
// Days without any bar are holidays and are left out of the result.
func (r *Runner) RunRange(ctx context.Context, symbol, from, to string) (*RunResult, error) {
	start := time.Now()
	result, err := r.runRange(ctx, symbol, from, to)

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordBacktestRun(status, time.Since(start).Seconds())
	return result, err
}

func (r *Runner) runRange(ctx context.Context, symbol, from, to string) (*RunResult, error) {
	days, err := session.TradingDays(from, to)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	r.log("run %s: %s %s..%s (%d days)", runID, symbol, from, to, len(days))

	results := make([]*SessionResult, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, day := range days {
		g.Go(func() error {
			res, err := r.RunSession(gctx, runID, symbol, day)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run := &RunResult{RunID: runID, Symbol: symbol, From: from, To: to}
	for _, res := range results {
		if res != nil {
			run.Sessions = append(run.Sessions, *res)
		}
	}
	r.log("run %s: %d sessions", runID, len(run.Sessions))
	return run, nil
}

// RunSession replays one day and persists its records.
// It returns nil without error for a day with no bars.
// A failure to load bars is not an error: the session ends in ERROR and is
// recorded as such.
func (r *Runner) RunSession(ctx context.Context, runID, symbol, date string) (*SessionResult, error) {
	w, err := session.Compute(date, r.sessionCfg)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(runID, r.machineCfg)
	if err := r.replay.Run(ctx, symbol, w, engine); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[backtest] session %s %s: %v", symbol, date, err)
	}

	res := engine.Result()
	if res.Record.BarCount == 0 && res.Record.FinalState != string(machine.StateError) {
		r.log("session %s %s: no bars", symbol, date)
		return nil, nil
	}
	r.log("session %s %s: %s, %d signals, %d trades",
		symbol, date, res.Record.FinalState, res.Record.SignalCount, res.Record.TradeCount)

	if r.stores != nil {
		if err := Persist(ctx, *r.stores, &res); err != nil {
			return nil, err
		}
	}
	recordMetrics(engine.Context())
	return &res, nil
}

// Persist writes a session result through stores.
func Persist(ctx context.Context, stores storage.Stores, res *SessionResult) error {
	sessionID := res.Record.SessionID
	if err := stores.Sessions.Insert(ctx, &res.Record); err != nil {
		return fmt.Errorf("insert session %s: %w", sessionID, err)
	}

	if len(res.Signals) > 0 {
		signals := make([]*domain.SignalRecord, len(res.Signals))
		for i := range res.Signals {
			signals[i] = &res.Signals[i]
		}
		if err := stores.Signals.InsertBulk(ctx, signals); err != nil {
			return fmt.Errorf("insert signals %s: %w", sessionID, err)
		}
	}

	for i := range res.Trades {
		if err := stores.Trades.Insert(ctx, &res.Trades[i]); err != nil {
			return fmt.Errorf("insert trade %s: %w", res.Trades[i].ID, err)
		}
	}
	for i := range res.Outcomes {
		if err := stores.Outcomes.Insert(ctx, &res.Outcomes[i]); err != nil {
			return fmt.Errorf("insert outcome %s: %w", res.Outcomes[i].TradeID, err)
		}
	}
	return nil
}

func recordMetrics(c machine.Context) {
	observability.RecordSession(string(c.State), len(c.AllBars), c.Signals, c.Trades, c.Outcomes)
}

func (r *Runner) log(format string, args ...interface{}) {
	if r.verbose {
		log.Printf("[backtest] "+format, args...)
	}
}
