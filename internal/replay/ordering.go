package replay

import (
	"fmt"
	"sort"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/machine"
	"breakout-lab/internal/session"
)

// SortCandles orders bars by (timestamp ASC, symbol ASC).
func SortCandles(candles []*domain.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return compareCandles(candles[i], candles[j]) < 0
	})
}

// ValidateOrdering checks that timestamps are strictly ascending.
// A repeated timestamp is a duplicate bar and also fails.
func ValidateOrdering(candles []*domain.Candle) error {
	for i := 1; i < len(candles); i++ {
		if candles[i].TimestampMs <= candles[i-1].TimestampMs {
			return fmt.Errorf("%w: bar %d at %d follows %d",
				ErrInvalidOrdering, i, candles[i].TimestampMs, candles[i-1].TimestampMs)
		}
	}
	return nil
}

// BuildSessionEvents wraps the window's bars in SESSION_START and SESSION_END.
// Bars outside the window are dropped; candles must already be ordered.
func BuildSessionEvents(symbol string, w session.Window, candles []*domain.Candle) []machine.Event {
	events := make([]machine.Event, 0, len(candles)+2)
	events = append(events, machine.SessionStart(w.Date, symbol, w.ZoneEndMs))
	for _, c := range candles {
		if w.Contains(c.TimestampMs) {
			events = append(events, machine.NewBar(c))
		}
	}
	return append(events, machine.SessionEnd())
}

func compareCandles(a, b *domain.Candle) int {
	if a.TimestampMs != b.TimestampMs {
		if a.TimestampMs < b.TimestampMs {
			return -1
		}
		return 1
	}
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	return 0
}
