// Package machine implements the breakout decision engine: a deterministic
// reducer over session events with two mutually exclusive directional
// tracks. It performs no I/O and reads no clock.
package machine

import (
	"breakout-lab/internal/domain"
)

// transition fires when its guard matches; the first match in table order wins.
type transition struct {
	guard  guard
	action action
	target Phase
}

// trackTransitions is the per-phase transition table shared by both tracks.
// Guards are direction-aware, so LONG and SHORT use the same table.
var trackTransitions = map[Phase][]transition{
	PhaseWatching: {
		{guard: isSuperseded, target: PhaseSuperseded},
		{guard: isMaxAttemptsReached, target: PhaseMaxAttemptsExhausted},
		{guard: isBreak, action: recordBreak, target: PhaseBreakDetected},
	},
	PhaseBreakDetected: {
		{guard: isSuperseded, target: PhaseSuperseded},
		{guard: isRetestAndConfirm, action: recordRetestAndConfirm, target: PhasePositionOpen},
		{guard: isBreakFailureAtLimit, action: recordBreakFailure, target: PhaseMaxAttemptsExhausted},
		{guard: isBreakFailure, action: recordBreakFailure, target: PhaseWatching},
		{guard: isRetest, action: recordRetest, target: PhaseRetestDetected},
	},
	PhaseRetestDetected: {
		{guard: isSuperseded, target: PhaseSuperseded},
		{guard: isConfirmation, action: recordConfirmation, target: PhasePositionOpen},
		{guard: isBreakFailureAtLimit, action: recordBreakFailure, target: PhaseMaxAttemptsExhausted},
		{guard: isBreakFailure, action: recordBreakFailure, target: PhaseWatching},
	},
	PhasePositionOpen: {
		{guard: isStopHit, action: resolveStop, target: PhaseResolved},
		{guard: isTarget3R, action: resolveTarget3R, target: PhaseResolved},
		{guard: isTarget2R, action: reach2R, target: PhasePositionOpen},
		{guard: isTarget1R, action: reach1R, target: PhasePositionOpen},
	},
}

// Apply returns the context that results from delivering ev to c.
// c itself is left unchanged.
func Apply(c Context, ev Event) Context {
	if c.State.IsFinal() {
		return c
	}
	n := c.clone()

	if ev.Type == EventError {
		fail(&n, ev.Message)
		return n
	}

	switch n.State {
	case StateIdle:
		if ev.Type == EventSessionStart {
			startSession(&n, ev)
			n.State = StateBuildingZone
		}

	case StateBuildingZone:
		if isSessionEnd(ev) {
			n.State = StateComplete
			return n
		}
		bar, ok := ev.completedBar()
		if !ok {
			return n
		}
		seedZone(&n, bar)
		accumulateBar(&n, bar)
		n.State = StateObservingZone

	case StateObservingZone:
		if isSessionEnd(ev) {
			n.State = StateComplete
			return n
		}
		bar, ok := ev.completedBar()
		if !ok {
			return n
		}
		accumulateBar(&n, bar)
		if isZoneComplete(&n, bar) {
			n.State = StateEvaluatingZone
			evaluateZone(&n, bar)
		}

	case StateMonitoring:
		if isSessionEnd(ev) {
			if err := resolveSessionTimeout(&n); err != nil {
				fail(&n, err.Error())
				return n
			}
			n.State = StateComplete
			return n
		}
		bar, ok := ev.completedBar()
		if !ok {
			return n
		}
		accumulateBar(&n, bar)
		for _, dir := range trackOrder(&n, bar) {
			if err := stepTrack(&n, dir, bar); err != nil {
				fail(&n, err.Error())
				return n
			}
		}
		supersedeIdle(&n)
	}

	return n
}

// supersedeIdle retires any track still live once the other side holds a position.
func supersedeIdle(c *Context) {
	for _, dir := range []domain.Direction{domain.DirectionLong, domain.DirectionShort} {
		tr := c.TrackFor(dir)
		if !tr.Phase.IsTerminal() && isSuperseded(c, dir, nil) {
			tr.Phase = PhaseSuperseded
		}
	}
}

// trackOrder steps the track that opens a position on bar first, so the
// other track is superseded on that bar without a transition of its own.
// Both tracks cannot open on one bar: a close above resistance is never
// below support.
func trackOrder(c *Context, bar *domain.Candle) []domain.Direction {
	if opensPosition(c, domain.DirectionShort, bar) {
		return []domain.Direction{domain.DirectionShort, domain.DirectionLong}
	}
	return []domain.Direction{domain.DirectionLong, domain.DirectionShort}
}

// opensPosition reports whether dir's first matching transition on bar
// enters PhasePositionOpen. Guards are pure, so this has no effect on c.
func opensPosition(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	tr := c.TrackFor(dir)
	if tr.Phase.IsTerminal() || tr.Phase == PhasePositionOpen {
		return false
	}
	for _, t := range trackTransitions[tr.Phase] {
		if t.guard(c, dir, bar) {
			return t.target == PhasePositionOpen
		}
	}
	return false
}

// evaluateZone classifies the zone on the zone-completing bar.
func evaluateZone(c *Context, bar *domain.Candle) {
	switch {
	case isChoppy(c, bar):
		c.Zone.Status = domain.ZoneNoTradeChoppy
		c.State = StateNoTrade
	case isDegenerate(c):
		c.Zone.Status = domain.ZoneNoTradeDegenerate
		c.State = StateNoTrade
	default:
		c.Zone.Status = domain.ZoneDefined
		c.Long = Track{Phase: PhaseWatching}
		c.Short = Track{Phase: PhaseWatching}
		c.State = StateMonitoring
	}
}

// stepTrack fires at most one transition of dir's track for bar.
func stepTrack(c *Context, dir domain.Direction, bar *domain.Candle) error {
	tr := c.TrackFor(dir)
	if tr.Phase.IsTerminal() {
		return nil
	}
	for _, t := range trackTransitions[tr.Phase] {
		if !t.guard(c, dir, bar) {
			continue
		}
		if t.action != nil {
			if err := t.action(c, dir, bar); err != nil {
				return err
			}
		}
		c.TrackFor(dir).Phase = t.target
		return nil
	}
	return nil
}

func fail(c *Context, message string) {
	if message == "" {
		message = "unspecified session error"
	}
	c.Error = message
	c.State = StateError
}

// Machine holds the current context of one session.
// It is not safe for concurrent use; each session owns its own Machine.
type Machine struct {
	ctx Context
}

// New creates a machine in IDLE.
func New(cfg Config) *Machine {
	return &Machine{ctx: NewContext(cfg)}
}

// Send applies ev and returns the resulting top-level state.
func (m *Machine) Send(ev Event) State {
	m.ctx = Apply(m.ctx, ev)
	return m.ctx.State
}

// State returns the current top-level state.
func (m *Machine) State() State {
	return m.ctx.State
}

// Context returns the current context. Callers must not modify its slices.
func (m *Machine) Context() Context {
	return m.ctx
}
