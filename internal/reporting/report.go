// Package reporting renders backtest results as Markdown and CSV.
package reporting

import (
	"sort"
	"time"

	"breakout-lab/internal/backtest"
	"breakout-lab/internal/domain"
	"breakout-lab/internal/machine"
	"breakout-lab/internal/metrics"
)

// Report is the rendered view of a set of sessions.
type Report struct {
	GeneratedAt time.Time
	RunID       string // empty when the report spans stored runs
	Symbol      string

	Summary     SessionSummary
	Aggregate   *domain.StrategyAggregate
	ByDirection []DirectionRow // LONG first
	Trades      []TradeRow     // ordered by exit time, then trade ID
}

// SessionSummary counts sessions by how they ended.
type SessionSummary struct {
	Sessions          int
	Traded            int
	NoTradeChoppy     int
	NoTradeDegenerate int
	Errors            int
	FirstDate         string
	LastDate          string
}

// DirectionRow is the per-direction slice of the aggregate.
type DirectionRow struct {
	Direction   domain.Direction
	TotalTrades int
	Wins        int
	WinRate     float64
	MeanR       float64
	TotalR      float64
}

// TradeRow is one resolved trade. Prices are cents.
type TradeRow struct {
	Date            string
	TradeID         string
	Direction       domain.Direction
	EntryPrice      int64
	StopLevel       int64
	ExitPrice       int64
	ExitTimestampMs int64
	Result          domain.OutcomeResult
	RealizedR       float64
	MaxFavorableR   float64
	MaxAdverseR     float64
	BarsHeld        int
}

// Build assembles a report from session results and their aggregate.
// GeneratedAt is left for the caller to set.
func Build(runID, symbol string, sessions []backtest.SessionResult, agg *domain.StrategyAggregate) *Report {
	r := &Report{
		RunID:     runID,
		Symbol:    symbol,
		Summary:   summarize(sessions),
		Aggregate: agg,
	}

	for _, s := range sessions {
		trades := make(map[string]domain.Trade, len(s.Trades))
		for _, t := range s.Trades {
			trades[t.ID] = t.Trade
		}
		for _, o := range s.Outcomes {
			t := trades[o.TradeID]
			r.Trades = append(r.Trades, TradeRow{
				Date:            o.Date,
				TradeID:         o.TradeID,
				Direction:       o.Direction,
				EntryPrice:      t.EntryPrice,
				StopLevel:       t.StopLevel,
				ExitPrice:       o.ExitPrice,
				ExitTimestampMs: o.ExitTimestampMs,
				Result:          o.Result,
				RealizedR:       o.RealizedR,
				MaxFavorableR:   o.MaxFavorableR,
				MaxAdverseR:     o.MaxAdverseR,
				BarsHeld:        o.BarsHeld,
			})
		}
	}
	sort.SliceStable(r.Trades, func(i, j int) bool {
		if r.Trades[i].ExitTimestampMs != r.Trades[j].ExitTimestampMs {
			return r.Trades[i].ExitTimestampMs < r.Trades[j].ExitTimestampMs
		}
		return r.Trades[i].TradeID < r.Trades[j].TradeID
	})

	r.ByDirection = directionRows(collectOutcomes(sessions))
	return r
}

func collectOutcomes(sessions []backtest.SessionResult) []domain.OutcomeRecord {
	var out []domain.OutcomeRecord
	for _, s := range sessions {
		out = append(out, s.Outcomes...)
	}
	return out
}

func summarize(sessions []backtest.SessionResult) SessionSummary {
	var s SessionSummary
	for _, res := range sessions {
		rec := res.Record
		s.Sessions++
		if rec.TradeCount > 0 {
			s.Traded++
		}
		switch {
		case rec.FinalState == string(machine.StateError):
			s.Errors++
		case rec.ZoneStatus == domain.ZoneNoTradeChoppy:
			s.NoTradeChoppy++
		case rec.ZoneStatus == domain.ZoneNoTradeDegenerate:
			s.NoTradeDegenerate++
		}
		if s.FirstDate == "" || rec.Date < s.FirstDate {
			s.FirstDate = rec.Date
		}
		if rec.Date > s.LastDate {
			s.LastDate = rec.Date
		}
	}
	return s
}

func directionRows(outcomes []domain.OutcomeRecord) []DirectionRow {
	byDir := metrics.ComputeByDirection(outcomes)

	var rows []DirectionRow
	for _, dir := range []domain.Direction{domain.DirectionLong, domain.DirectionShort} {
		agg, ok := byDir[dir]
		if !ok {
			continue
		}
		rows = append(rows, DirectionRow{
			Direction:   dir,
			TotalTrades: agg.TotalTrades,
			Wins:        agg.Wins,
			WinRate:     agg.WinRate,
			MeanR:       agg.MeanR,
			TotalR:      agg.TotalR,
		})
	}
	return rows
}
