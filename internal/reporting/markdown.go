package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dollars formats cents as a fixed two-decimal dollar amount.
func dollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Breakout Backtest Report\n\n")
	if !r.GeneratedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("Symbol: %s", r.Symbol))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf(" | Run: %s", r.RunID))
	}
	sb.WriteString("\n\n")

	// Sessions
	s := r.Summary
	sb.WriteString("## Sessions\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Date Range | %s .. %s |\n", s.FirstDate, s.LastDate))
	sb.WriteString(fmt.Sprintf("| Sessions | %d |\n", s.Sessions))
	sb.WriteString(fmt.Sprintf("| Sessions Traded | %d |\n", s.Traded))
	sb.WriteString(fmt.Sprintf("| No Trade (choppy) | %d |\n", s.NoTradeChoppy))
	sb.WriteString(fmt.Sprintf("| No Trade (degenerate) | %d |\n", s.NoTradeDegenerate))
	sb.WriteString(fmt.Sprintf("| Errors | %d |\n", s.Errors))
	sb.WriteString("\n")

	// Performance
	sb.WriteString("## Performance\n\n")
	if a := r.Aggregate; a != nil && a.TotalTrades > 0 {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Trades | %d |\n", a.TotalTrades))
		sb.WriteString(fmt.Sprintf("| WIN_3R | %d |\n", a.Win3R))
		sb.WriteString(fmt.Sprintf("| WIN_2R | %d |\n", a.Win2R))
		sb.WriteString(fmt.Sprintf("| LOSS | %d |\n", a.Losses))
		sb.WriteString(fmt.Sprintf("| BREAKEVEN_STOP | %d |\n", a.BreakevenStops))
		sb.WriteString(fmt.Sprintf("| SESSION_TIMEOUT | %d |\n", a.SessionTimeouts))
		sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", a.WinRate))
		sb.WriteString(fmt.Sprintf("| Expectancy (R) | %.2f |\n", a.Expectancy))
		sb.WriteString(fmt.Sprintf("| Total R | %.2f |\n", a.TotalR))
		sb.WriteString(fmt.Sprintf("| Mean / Median R | %.4f / %.4f |\n", a.MeanR, a.MedianR))
		sb.WriteString(fmt.Sprintf("| P10 / P90 R | %.4f / %.4f |\n", a.P10R, a.P90R))
		sb.WriteString(fmt.Sprintf("| Min / Max R | %.2f / %.2f |\n", a.MinR, a.MaxR))
		sb.WriteString(fmt.Sprintf("| Stddev R | %.4f |\n", a.StddevR))
		sb.WriteString(fmt.Sprintf("| Max Drawdown (R) | %.2f |\n", a.MaxDrawdownR))
		sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", a.MaxConsecutiveLosses))
		sb.WriteString(fmt.Sprintf("| Mean MFE / MAE (R) | %.2f / %.2f |\n", a.MeanMaxFavorableR, a.MeanMaxAdverseR))
		sb.WriteString(fmt.Sprintf("| Mean Bars Held | %.1f |\n", a.MeanBarsHeld))
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// By direction
	if len(r.ByDirection) > 0 {
		sb.WriteString("## By Direction\n\n")
		sb.WriteString("| Direction | Trades | Wins | WinRate | Mean R | Total R |\n")
		sb.WriteString("|-----------|--------|------|---------|--------|---------|\n")
		for _, d := range r.ByDirection {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %.4f | %.2f |\n",
				d.Direction, d.TotalTrades, d.Wins, d.WinRate, d.MeanR, d.TotalR))
		}
		sb.WriteString("\n")
	}

	// Trades
	if len(r.Trades) > 0 {
		sb.WriteString("## Trades\n\n")
		sb.WriteString("| Date | Trade | Entry | Stop | Exit | Result | R | MFE | MAE | Bars |\n")
		sb.WriteString("|------|-------|-------|------|------|--------|---|-----|-----|------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %.2f | %.2f | %.2f | %d |\n",
				t.Date, t.TradeID,
				dollars(t.EntryPrice), dollars(t.StopLevel), dollars(t.ExitPrice),
				t.Result, t.RealizedR, t.MaxFavorableR, t.MaxAdverseR, t.BarsHeld))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
