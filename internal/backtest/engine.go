// Package backtest replays stored sessions through the decision machine
// and persists what each session produced.
package backtest

import (
	"context"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/idhash"
	"breakout-lab/internal/machine"
	"breakout-lab/internal/replay"
)

// SessionResult is everything one session produced, tagged for storage.
type SessionResult struct {
	Record   domain.SessionRecord
	Signals  []domain.SignalRecord
	Trades   []domain.TradeRecord
	Outcomes []domain.OutcomeRecord
}

// Engine feeds replayed events into a decision machine.
type Engine struct {
	runID  string
	m      *machine.Machine
	events int
}

// NewEngine creates an engine for one session of run runID.
func NewEngine(runID string, cfg machine.Config) *Engine {
	return &Engine{runID: runID, m: machine.New(cfg)}
}

// OnEvent applies the event. The machine never rejects events.
func (e *Engine) OnEvent(_ context.Context, ev machine.Event) error {
	e.events++
	e.m.Send(ev)
	return nil
}

// EventCount returns the number of events delivered so far.
func (e *Engine) EventCount() int {
	return e.events
}

// Context returns the machine's current context.
func (e *Engine) Context() machine.Context {
	return e.m.Context()
}

// Result converts the machine's context into storage records.
func (e *Engine) Result() SessionResult {
	return buildResult(e.runID, e.m.Context())
}

func buildResult(runID string, c machine.Context) SessionResult {
	sessionID := idhash.ComputeSessionID(c.Date, c.Symbol, runID)

	rec := domain.SessionRecord{
		SessionID:    sessionID,
		RunID:        runID,
		Date:         c.Date,
		Symbol:       c.Symbol,
		FinalState:   string(c.State),
		HostStatus:   domain.HostStatusFinished,
		BarCount:     len(c.AllBars),
		SignalCount:  len(c.Signals),
		TradeCount:   len(c.Trades),
		ErrorMessage: c.Error,
	}
	if !c.State.IsFinal() {
		rec.HostStatus = domain.HostStatusInterrupted
	}
	if c.Zone != nil {
		rec.ZoneStatus = c.Zone.Status
		rec.Resistance = c.Zone.Resistance
		rec.Support = c.Zone.Support
	}
	if n := len(c.AllBars); n > 0 {
		rec.StartedAtMs = c.AllBars[0].TimestampMs
		rec.FinishedAtMs = c.AllBars[n-1].TimestampMs
	}

	res := SessionResult{Record: rec}
	for i, s := range c.Signals {
		res.Signals = append(res.Signals, domain.SignalRecord{SessionID: sessionID, Seq: i, Signal: s})
	}
	directions := make(map[string]domain.Direction, len(c.Trades))
	for _, t := range c.Trades {
		res.Trades = append(res.Trades, domain.TradeRecord{SessionID: sessionID, Trade: t})
		directions[t.ID] = t.Direction
	}
	for _, o := range c.Outcomes {
		res.Outcomes = append(res.Outcomes, domain.OutcomeRecord{
			SessionID:    sessionID,
			Date:         c.Date,
			Symbol:       c.Symbol,
			Direction:    directions[o.TradeID],
			TradeOutcome: o,
		})
	}
	return res
}

var _ replay.ReplayEngine = (*Engine)(nil)
