package machine

import "breakout-lab/internal/domain"

// State is the top-level machine state.
type State string

// Top-level states.
const (
	StateIdle           State = "IDLE"
	StateBuildingZone   State = "BUILDING_ZONE"
	StateObservingZone  State = "OBSERVING_ZONE"
	StateEvaluatingZone State = "EVALUATING_ZONE"
	StateNoTrade        State = "NO_TRADE"
	StateMonitoring     State = "MONITORING"
	StateComplete       State = "COMPLETE"
	StateError          State = "ERROR"
)

// IsFinal reports whether the machine accepts no further events.
func (s State) IsFinal() bool {
	return s == StateNoTrade || s == StateComplete || s == StateError
}

// Phase is the state of one directional track inside MONITORING.
type Phase string

// Track phases.
const (
	PhaseInactive             Phase = "inactive"
	PhaseWatching             Phase = "watchingForBreak"
	PhaseBreakDetected        Phase = "breakDetected"
	PhaseRetestDetected       Phase = "retestDetected"
	PhasePositionOpen         Phase = "positionOpen"
	PhaseResolved             Phase = "resolved"
	PhaseMaxAttemptsExhausted Phase = "maxAttemptsExhausted"
	PhaseSuperseded           Phase = "superseded"
)

// IsTerminal reports whether the track ignores all further bars.
func (p Phase) IsTerminal() bool {
	return p == PhaseResolved || p == PhaseMaxAttemptsExhausted || p == PhaseSuperseded
}

// Track is the per-direction sub-state.
type Track struct {
	BreakAttempts int
	Phase         Phase
	BreakBar      *domain.Candle
	RetestBar     *domain.Candle
}

// Context is the full reducer state for one (date, symbol) session.
// Slices are append-only logs. A Context returned by Apply is never
// modified by later calls.
type Context struct {
	State State

	Date           string
	Symbol         string
	ZoneEndMs      int64
	PremarketPrice int64

	Zone     *domain.DecisionZone
	ZoneBars []domain.Candle
	AllBars  []domain.Candle
	Signals  []domain.Signal
	Trades   []domain.Trade
	Outcomes []domain.TradeOutcome

	// ActiveDirection is empty until one side opens a position,
	// then fixed for the session.
	ActiveDirection domain.Direction
	Long            Track
	Short           Track

	// Milestones are shared: only one direction can be active.
	Reached1R   bool
	Reached2R   bool
	Reached3R   bool
	Timestamp1R int64
	Timestamp2R int64
	Timestamp3R int64

	Config Config
	Error  string
}

// NewContext returns the IDLE context for cfg.
func NewContext(cfg Config) Context {
	return Context{
		State:  StateIdle,
		Long:   Track{Phase: PhaseInactive},
		Short:  Track{Phase: PhaseInactive},
		Config: cfg,
	}
}

// TrackFor returns the track for dir.
func (c *Context) TrackFor(dir domain.Direction) *Track {
	if dir == domain.DirectionShort {
		return &c.Short
	}
	return &c.Long
}

// ActiveTrade returns the open trade for dir, or nil.
func (c *Context) ActiveTrade(dir domain.Direction) *domain.Trade {
	for i := len(c.Trades) - 1; i >= 0; i-- {
		t := &c.Trades[i]
		if t.Direction == dir && t.IsOpen() {
			return t
		}
	}
	return nil
}

// LastBar returns the most recent completed bar, or nil.
func (c *Context) LastBar() *domain.Candle {
	if len(c.AllBars) == 0 {
		return nil
	}
	return &c.AllBars[len(c.AllBars)-1]
}

// barsAfter returns the bars strictly after ts.
func (c *Context) barsAfter(ts int64) []domain.Candle {
	var out []domain.Candle
	for _, b := range c.AllBars {
		if b.TimestampMs > ts {
			out = append(out, b)
		}
	}
	return out
}

// clone copies every mutable part so the receiver stays untouched.
func (c Context) clone() Context {
	n := c
	if c.Zone != nil {
		z := *c.Zone
		z.SourceBars = append([]domain.Candle(nil), c.Zone.SourceBars...)
		n.Zone = &z
	}
	n.ZoneBars = append([]domain.Candle(nil), c.ZoneBars...)
	n.AllBars = append([]domain.Candle(nil), c.AllBars...)
	n.Signals = append([]domain.Signal(nil), c.Signals...)
	n.Trades = append([]domain.Trade(nil), c.Trades...)
	n.Outcomes = append([]domain.TradeOutcome(nil), c.Outcomes...)
	return n
}
