package verification

import (
	"context"
	"errors"
	"fmt"

	"breakout-lab/internal/backtest"
	"breakout-lab/internal/config"
	"breakout-lab/internal/domain"
	"breakout-lab/internal/machine"
	"breakout-lab/internal/replay"
	"breakout-lab/internal/session"
	"breakout-lab/internal/storage"
)

// ErrSessionNotFound is returned when session ID doesn't exist.
var ErrSessionNotFound = errors.New("session not found")

// ReplayVerifier implements Verifier by replaying stored bars.
type ReplayVerifier struct {
	stores     storage.Stores
	replay     *replay.Runner
	machineCfg machine.Config
	sessionCfg config.SessionConfig
}

// NewReplayVerifier creates a verifier reading results from stores and bars
// from candles. cfg must be the configuration the run used.
func NewReplayVerifier(stores storage.Stores, candles storage.CandleStore, cfg *config.Config) *ReplayVerifier {
	return &ReplayVerifier{
		stores:     stores,
		replay:     replay.NewRunner(candles),
		machineCfg: cfg.MachineConfig(),
		sessionCfg: cfg.Session,
	}
}

// VerifySession verifies a single session by replaying it.
func (v *ReplayVerifier) VerifySession(ctx context.Context, sessionID string) (*VerificationResult, error) {
	stored, err := v.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	replayed, err := v.replaySession(ctx, stored)
	if err != nil {
		return nil, err
	}

	divergences := CompareSessions(stored, replayed)
	return &VerificationResult{
		SessionID:   sessionID,
		Date:        stored.Record.Date,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// VerifyRun verifies all sessions of a run.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	sessions, err := v.stores.Sessions.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalSessions: len(sessions),
		Results:       make([]VerificationResult, 0, len(sessions)),
	}

	for _, s := range sessions {
		if s.HostStatus == domain.HostStatusInterrupted {
			report.SkippedSessions++
			continue
		}
		result, err := v.VerifySession(ctx, s.SessionID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				SessionID: s.SessionID,
				Date:      s.Date,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentSessions++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedSessions++
		} else {
			report.DivergentSessions++
		}
	}

	return report, nil
}

// load assembles the stored result of a session.
func (v *ReplayVerifier) load(ctx context.Context, sessionID string) (*backtest.SessionResult, error) {
	rec, err := v.stores.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	res := &backtest.SessionResult{Record: *rec}

	trades, err := v.stores.Trades.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	for _, t := range trades {
		res.Trades = append(res.Trades, *t)
	}

	outcomes, err := v.stores.Outcomes.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}
	for _, o := range outcomes {
		res.Outcomes = append(res.Outcomes, *o)
	}
	return res, nil
}

// replaySession re-runs the machine over the stored bars of the session's day.
func (v *ReplayVerifier) replaySession(ctx context.Context, stored *backtest.SessionResult) (*backtest.SessionResult, error) {
	w, err := session.Compute(stored.Record.Date, v.sessionCfg)
	if err != nil {
		return nil, err
	}

	engine := backtest.NewEngine(stored.Record.RunID, v.machineCfg)
	if err := v.replay.Run(ctx, stored.Record.Symbol, w, engine); err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	replayed := engine.Result()
	return &replayed, nil
}

var _ Verifier = (*ReplayVerifier)(nil)
