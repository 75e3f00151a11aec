package machine

import "breakout-lab/internal/domain"

// Guards are pure predicates over the context and the triggering bar.
// SHORT mirrors LONG with the zone bounds swapped and comparisons inverted.

// guard decides whether a track transition fires for bar.
type guard func(c *Context, dir domain.Direction, bar *domain.Candle) bool

// isZoneComplete reports whether bar closes out the opening range.
func isZoneComplete(c *Context, bar *domain.Candle) bool {
	return bar.TimestampMs >= c.ZoneEndMs
}

// isChoppy reports whether the zone-completing close sits strictly inside the zone.
// Closes exactly on a bound are not choppy.
func isChoppy(c *Context, bar *domain.Candle) bool {
	if c.Zone == nil {
		return false
	}
	return bar.Close > c.Zone.Support && bar.Close < c.Zone.Resistance
}

// isDegenerate reports whether the zone is too narrow or too wide to trade.
func isDegenerate(c *Context) bool {
	z := c.Zone
	if z == nil {
		return true
	}
	if z.Spread < c.Config.MinZoneSpreadCents {
		return true
	}
	mid := z.Midpoint()
	if mid == 0 {
		return true
	}
	return float64(z.Spread)/mid > c.Config.MaxZoneSpreadPercent/100
}

// isSuperseded reports whether the other direction already holds the session.
func isSuperseded(c *Context, dir domain.Direction, _ *domain.Candle) bool {
	return c.ActiveDirection == dir.Opposite()
}

// isMaxAttemptsReached reports whether dir has used up its break attempts.
func isMaxAttemptsReached(c *Context, dir domain.Direction, _ *domain.Candle) bool {
	return c.TrackFor(dir).BreakAttempts >= c.Config.MaxBreakAttempts
}

// isBreak: LONG high > resistance, SHORT low < support.
func isBreak(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	if c.TrackFor(dir).Phase != PhaseWatching {
		return false
	}
	if dir == domain.DirectionShort {
		return bar.Low < c.Zone.Support
	}
	return bar.High > c.Zone.Resistance
}

// isRetestAndConfirm: the bar touches the broken level and closes back beyond it.
func isRetestAndConfirm(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	if c.TrackFor(dir).Phase != PhaseBreakDetected {
		return false
	}
	if dir == domain.DirectionShort {
		return bar.High >= c.Zone.Support && bar.Close < c.Zone.Support
	}
	return bar.Low <= c.Zone.Resistance && bar.Close > c.Zone.Resistance
}

// isRetest: the bar touches the broken level.
// Evaluated after isRetestAndConfirm and isBreakFailure, which together
// cover every touching bar.
func isRetest(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	if c.TrackFor(dir).Phase != PhaseBreakDetected {
		return false
	}
	if dir == domain.DirectionShort {
		return bar.High >= c.Zone.Support
	}
	return bar.Low <= c.Zone.Resistance
}

// isBreakFailure: the bar closes back inside the zone.
func isBreakFailure(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	p := c.TrackFor(dir).Phase
	if p != PhaseBreakDetected && p != PhaseRetestDetected {
		return false
	}
	if dir == domain.DirectionShort {
		return bar.Close >= c.Zone.Support
	}
	return bar.Close <= c.Zone.Resistance
}

// isBreakFailureAtLimit is a break failure that uses up the last allowed attempt.
func isBreakFailureAtLimit(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	return isBreakFailure(c, dir, bar) && isMaxAttemptsReached(c, dir, bar)
}

// isConfirmation: after a retest the bar closes beyond the broken level.
func isConfirmation(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	if c.TrackFor(dir).Phase != PhaseRetestDetected {
		return false
	}
	if dir == domain.DirectionShort {
		return bar.Close < c.Zone.Support
	}
	return bar.Close > c.Zone.Resistance
}

// isStopHit: the bar closes through the current stop.
func isStopHit(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	if c.TrackFor(dir).Phase != PhasePositionOpen {
		return false
	}
	t := c.ActiveTrade(dir)
	if t == nil {
		return false
	}
	if dir == domain.DirectionShort {
		return bar.Close >= t.CurrentStop
	}
	return bar.Close <= t.CurrentStop
}

func isTarget1R(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	return !c.Reached1R && closedBeyondTarget(c, dir, bar, func(t *domain.Trade) int64 { return t.Target1R })
}

func isTarget2R(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	return !c.Reached2R && closedBeyondTarget(c, dir, bar, func(t *domain.Trade) int64 { return t.Target2R })
}

func isTarget3R(c *Context, dir domain.Direction, bar *domain.Candle) bool {
	return !c.Reached3R && closedBeyondTarget(c, dir, bar, func(t *domain.Trade) int64 { return t.Target3R })
}

func closedBeyondTarget(c *Context, dir domain.Direction, bar *domain.Candle, target func(*domain.Trade) int64) bool {
	if c.TrackFor(dir).Phase != PhasePositionOpen {
		return false
	}
	t := c.ActiveTrade(dir)
	if t == nil {
		return false
	}
	if dir == domain.DirectionShort {
		return bar.Close <= target(t)
	}
	return bar.Close >= target(t)
}

// isSessionEnd reports whether ev ends the session.
func isSessionEnd(ev Event) bool {
	return ev.Type == EventSessionEnd
}
