package machine

import (
	"fmt"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/idhash"
	"breakout-lab/internal/risk"
)

// action updates the (already cloned) context for a completed bar.
// A non-nil error is a numeric contract violation and moves the machine to ERROR.
type action func(c *Context, dir domain.Direction, bar *domain.Candle) error

// startSession records the session identity and opens zone building.
func startSession(c *Context, ev Event) {
	c.Date = ev.Date
	c.Symbol = ev.Symbol
	c.ZoneEndMs = ev.ZoneEndMs
	c.PremarketPrice = ev.PremarketPrice
}

// seedZone builds the decision zone from the first completed bar.
func seedZone(c *Context, bar *domain.Candle) {
	premarket := c.PremarketPrice
	if c.Zone != nil {
		premarket = c.Zone.PremarketPrice
	}
	c.Zone = &domain.DecisionZone{
		Resistance:     bar.High,
		Support:        bar.Low,
		Spread:         bar.High - bar.Low,
		Status:         domain.ZoneDefined,
		DefinedAtMs:    bar.TimestampMs,
		SourceBars:     []domain.Candle{*bar},
		PremarketPrice: premarket,
	}
	c.ZoneBars = append(c.ZoneBars, *bar)

	if c.ZoneEndMs == 0 {
		size := bar.BarSizeMinutes
		if size <= 0 {
			size = c.Config.BarSizeMinutes
		}
		c.ZoneEndMs = bar.TimestampMs + int64(size)*60_000
	}
}

// accumulateBar appends bar to the session log.
func accumulateBar(c *Context, bar *domain.Candle) {
	c.AllBars = append(c.AllBars, *bar)
}

func appendSignal(c *Context, dir domain.Direction, typ domain.SignalType, bar *domain.Candle) domain.Signal {
	s := domain.Signal{
		Direction:     dir,
		Type:          typ,
		TimestampMs:   bar.TimestampMs,
		Price:         bar.Close,
		TriggerCandle: *bar,
		AttemptNumber: c.TrackFor(dir).BreakAttempts,
	}
	c.Signals = append(c.Signals, s)
	return s
}

// recordBreak opens a new break attempt.
func recordBreak(c *Context, dir domain.Direction, bar *domain.Candle) error {
	tr := c.TrackFor(dir)
	tr.BreakAttempts++
	b := *bar
	tr.BreakBar = &b
	tr.RetestBar = nil
	appendSignal(c, dir, domain.SignalBreak, bar)
	return nil
}

// recordRetest notes a touch of the broken level without confirmation.
func recordRetest(c *Context, dir domain.Direction, bar *domain.Candle) error {
	b := *bar
	c.TrackFor(dir).RetestBar = &b
	appendSignal(c, dir, domain.SignalRetest, bar)
	return nil
}

// recordRetestAndConfirm handles a single bar that retests and confirms.
func recordRetestAndConfirm(c *Context, dir domain.Direction, bar *domain.Candle) error {
	if err := recordRetest(c, dir, bar); err != nil {
		return err
	}
	return recordConfirmation(c, dir, bar)
}

// recordConfirmation appends the CONFIRMATION signal and opens the trade.
func recordConfirmation(c *Context, dir domain.Direction, bar *domain.Candle) error {
	sig := appendSignal(c, dir, domain.SignalConfirmation, bar)
	c.Trades = append(c.Trades, buildTrade(c, dir, sig))
	c.ActiveDirection = dir
	return nil
}

// buildTrade prices a new trade off the confirmation close.
func buildTrade(c *Context, dir domain.Direction, sig domain.Signal) domain.Trade {
	entry := sig.Price
	stop := risk.DetermineStopLevel(c.Zone, dir)
	rValue := risk.ComputeRValue(entry, stop)
	targets := risk.ComputeTargets(entry, rValue, dir, c.Config.Multiples)

	return domain.Trade{
		ID:               idhash.ComputeTradeID(c.Date, c.Symbol, dir, sig.AttemptNumber),
		Date:             c.Date,
		Symbol:           c.Symbol,
		Direction:        dir,
		EntryPrice:       entry,
		StopLevel:        stop,
		CurrentStop:      stop,
		RValue:           rValue,
		Target1R:         targets.Target1R,
		Target2R:         targets.Target2R,
		Target3R:         targets.Target3R,
		EntryTimestampMs: sig.TimestampMs,
		Status:           domain.TradeOpen,
		EntrySignal:      sig,
	}
}

// recordBreakFailure closes the attempt. The attempt counter is kept.
func recordBreakFailure(c *Context, dir domain.Direction, bar *domain.Candle) error {
	appendSignal(c, dir, domain.SignalBreakFailure, bar)
	tr := c.TrackFor(dir)
	tr.BreakBar = nil
	tr.RetestBar = nil
	return nil
}

// reach1R marks the first milestone and trails the stop to entry.
func reach1R(c *Context, dir domain.Direction, bar *domain.Candle) error {
	c.Reached1R = true
	c.Timestamp1R = bar.TimestampMs
	trailStop(c, dir)
	return nil
}

// reach2R marks the second milestone, backfilling 1R when the bar skipped it.
func reach2R(c *Context, dir domain.Direction, bar *domain.Candle) error {
	if !c.Reached1R {
		if err := reach1R(c, dir, bar); err != nil {
			return err
		}
	}
	c.Reached2R = true
	c.Timestamp2R = bar.TimestampMs
	return nil
}

func trailStop(c *Context, dir domain.Direction) {
	if !c.Config.TrailStopAt1R {
		return
	}
	if t := c.ActiveTrade(dir); t != nil {
		t.CurrentStop = risk.ComputeTrailingStop(t.StopLevel, t.EntryPrice, c.Reached1R)
	}
}

// resolveTarget3R closes the trade as WIN_3R, backfilling skipped milestones.
func resolveTarget3R(c *Context, dir domain.Direction, bar *domain.Candle) error {
	t := c.ActiveTrade(dir)
	if t == nil {
		return nil
	}
	ts := bar.TimestampMs
	if !c.Reached1R {
		c.Reached1R = true
		c.Timestamp1R = ts
	}
	if !c.Reached2R {
		c.Reached2R = true
		c.Timestamp2R = ts
	}
	c.Reached3R = true
	c.Timestamp3R = ts

	t.Status = domain.TradeTargetHit
	held := c.barsAfter(t.EntryTimestampMs)
	c.Outcomes = append(c.Outcomes, domain.TradeOutcome{
		TradeID:               t.ID,
		Result:                domain.ResultWin3R,
		MaxFavorableR:         risk.ComputeMaxFavorableR(held, t.EntryPrice, t.RValue, dir),
		MaxAdverseR:           risk.ComputeMaxAdverseR(held, t.EntryPrice, t.RValue, dir),
		ExitPrice:             t.Target3R,
		ExitTimestampMs:       ts,
		RealizedR:             c.Config.Multiples.Third,
		FirstThresholdReached: 3,
		Timestamp1R:           c.Timestamp1R,
		Timestamp2R:           c.Timestamp2R,
		Timestamp3R:           c.Timestamp3R,
		TimestampStop:         0,
		BarsHeld:              len(held),
	})
	return nil
}

// resolveStop closes the trade at its current stop.
func resolveStop(c *Context, dir domain.Direction, bar *domain.Candle) error {
	t := c.ActiveTrade(dir)
	if t == nil {
		return nil
	}
	realized, err := risk.ComputeRMultiple(t.EntryPrice, t.CurrentStop, t.RValue, dir)
	if err != nil {
		return fmt.Errorf("stop realized R for %s: %w", t.ID, err)
	}

	result := domain.ResultLoss
	if c.Reached1R && c.Config.TrailStopAt1R {
		result = domain.ResultBreakevenStop
	}

	t.Status = domain.TradeStoppedOut
	held := c.barsAfter(t.EntryTimestampMs)
	c.Outcomes = append(c.Outcomes, domain.TradeOutcome{
		TradeID:               t.ID,
		Result:                result,
		MaxFavorableR:         risk.ComputeMaxFavorableR(held, t.EntryPrice, t.RValue, dir),
		MaxAdverseR:           risk.ComputeMaxAdverseR(held, t.EntryPrice, t.RValue, dir),
		ExitPrice:             t.CurrentStop,
		ExitTimestampMs:       bar.TimestampMs,
		RealizedR:             realized,
		FirstThresholdReached: highestThreshold(c),
		Timestamp1R:           c.Timestamp1R,
		Timestamp2R:           c.Timestamp2R,
		Timestamp3R:           c.Timestamp3R,
		TimestampStop:         bar.TimestampMs,
		BarsHeld:              len(held),
	})
	return nil
}

// resolveSessionTimeout closes any open position at the last bar's close.
// With no bars recorded it does nothing.
func resolveSessionTimeout(c *Context) error {
	last := c.LastBar()
	if last == nil {
		return nil
	}
	for _, dir := range []domain.Direction{domain.DirectionLong, domain.DirectionShort} {
		tr := c.TrackFor(dir)
		if tr.Phase != PhasePositionOpen {
			continue
		}
		t := c.ActiveTrade(dir)
		if t == nil {
			continue
		}
		realized, err := risk.ComputeRMultiple(t.EntryPrice, last.Close, t.RValue, dir)
		if err != nil {
			return fmt.Errorf("timeout realized R for %s: %w", t.ID, err)
		}

		t.Status = domain.TradeSessionExpired
		held := c.barsAfter(t.EntryTimestampMs)
		c.Outcomes = append(c.Outcomes, domain.TradeOutcome{
			TradeID:               t.ID,
			Result:                domain.ResultSessionTimeout,
			MaxFavorableR:         risk.ComputeMaxFavorableR(held, t.EntryPrice, t.RValue, dir),
			MaxAdverseR:           risk.ComputeMaxAdverseR(held, t.EntryPrice, t.RValue, dir),
			ExitPrice:             last.Close,
			ExitTimestampMs:       last.TimestampMs,
			RealizedR:             realized,
			FirstThresholdReached: highestThreshold(c),
			Timestamp1R:           c.Timestamp1R,
			Timestamp2R:           c.Timestamp2R,
			Timestamp3R:           c.Timestamp3R,
			TimestampStop:         0,
			BarsHeld:              len(held),
		})
		tr.Phase = PhaseResolved
	}
	return nil
}

func highestThreshold(c *Context) int {
	switch {
	case c.Reached3R:
		return 3
	case c.Reached2R:
		return 2
	case c.Reached1R:
		return 1
	default:
		return 0
	}
}
