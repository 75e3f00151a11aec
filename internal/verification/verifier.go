// Package verification replays stored sessions and checks that the
// decision machine reproduces the stored results.
package verification

import (
	"context"
	"fmt"
	"math"

	"breakout-lab/internal/backtest"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name, indexed for trades and outcomes
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single session.
type VerificationResult struct {
	SessionID   string
	Date        string
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalSessions     int
	MatchedSessions   int
	DivergentSessions int
	SkippedSessions   int // interrupted by the host; a full-day replay cannot reproduce them
	Results           []VerificationResult
}

// Verifier checks stored sessions against a fresh replay.
type Verifier interface {
	// VerifySession replays one stored session and compares results.
	VerifySession(ctx context.Context, sessionID string) (*VerificationResult, error)

	// VerifyRun verifies every session of a run.
	VerifyRun(ctx context.Context, runID string) (*VerificationReport, error)
}

// CompareSessions compares two session results and returns divergences.
// Signals are compared by count only. Trades and outcomes are compared
// pairwise in order.
func CompareSessions(stored, replayed *backtest.SessionResult) []FieldDivergence {
	var d divergences

	s, r := stored.Record, replayed.Record
	d.check("FinalState", s.FinalState, r.FinalState)
	d.check("ZoneStatus", s.ZoneStatus, r.ZoneStatus)
	d.check("Resistance", s.Resistance, r.Resistance)
	d.check("Support", s.Support, r.Support)
	d.check("BarCount", s.BarCount, r.BarCount)
	d.check("SignalCount", s.SignalCount, r.SignalCount)
	d.check("TradeCount", s.TradeCount, r.TradeCount)

	d.check("Trades", len(stored.Trades), len(replayed.Trades))
	for i := 0; i < min(len(stored.Trades), len(replayed.Trades)); i++ {
		st, rt := stored.Trades[i], replayed.Trades[i]
		field := func(name string) string { return fmt.Sprintf("Trades[%d].%s", i, name) }
		d.check(field("ID"), st.ID, rt.ID)
		d.check(field("Direction"), st.Direction, rt.Direction)
		d.check(field("EntryPrice"), st.EntryPrice, rt.EntryPrice)
		d.check(field("StopLevel"), st.StopLevel, rt.StopLevel)
		d.check(field("Target3R"), st.Target3R, rt.Target3R)
		d.check(field("EntryTimestampMs"), st.EntryTimestampMs, rt.EntryTimestampMs)
		d.check(field("Status"), st.Status, rt.Status)
	}

	d.check("Outcomes", len(stored.Outcomes), len(replayed.Outcomes))
	for i := 0; i < min(len(stored.Outcomes), len(replayed.Outcomes)); i++ {
		so, ro := stored.Outcomes[i], replayed.Outcomes[i]
		field := func(name string) string { return fmt.Sprintf("Outcomes[%d].%s", i, name) }
		d.check(field("TradeID"), so.TradeID, ro.TradeID)
		d.check(field("Result"), so.Result, ro.Result)
		d.check(field("ExitPrice"), so.ExitPrice, ro.ExitPrice)
		d.check(field("ExitTimestampMs"), so.ExitTimestampMs, ro.ExitTimestampMs)
		d.checkFloat(field("RealizedR"), so.RealizedR, ro.RealizedR)
		d.checkFloat(field("MaxFavorableR"), so.MaxFavorableR, ro.MaxFavorableR)
		d.checkFloat(field("MaxAdverseR"), so.MaxAdverseR, ro.MaxAdverseR)
		d.check(field("BarsHeld"), so.BarsHeld, ro.BarsHeld)
	}

	return d
}

type divergences []FieldDivergence

func (d *divergences) check(field string, expected, actual interface{}) {
	if expected != actual {
		*d = append(*d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
}

func (d *divergences) checkFloat(field string, expected, actual float64) {
	if !floatEquals(expected, actual) {
		*d = append(*d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
}

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
