package machine

import "breakout-lab/internal/domain"

// EventType represents the type of event sent to the machine.
type EventType string

// Event type constants.
const (
	EventSessionStart EventType = "SESSION_START"
	EventNewBar       EventType = "NEW_BAR"
	EventSessionEnd   EventType = "SESSION_END"
	EventError        EventType = "ERROR"
)

// Event is the unit of input to Apply.
// Only the fields relevant to Type are set.
type Event struct {
	Type EventType

	// SESSION_START
	Date           string // YYYY-MM-DD
	Symbol         string
	ZoneEndMs      int64 // instant the opening range closes; 0 = one bar after the seed bar
	PremarketPrice int64 // cents, informational

	// NEW_BAR
	Candle *domain.Candle

	// ERROR
	Message string
}

// SessionStart builds a SESSION_START event.
func SessionStart(date, symbol string, zoneEndMs int64) Event {
	return Event{Type: EventSessionStart, Date: date, Symbol: symbol, ZoneEndMs: zoneEndMs}
}

// NewBar builds a NEW_BAR event.
func NewBar(c *domain.Candle) Event {
	return Event{Type: EventNewBar, Candle: c}
}

// SessionEnd builds a SESSION_END event.
func SessionEnd() Event {
	return Event{Type: EventSessionEnd}
}

// Error builds an ERROR event.
func Error(message string) Event {
	return Event{Type: EventError, Message: message}
}

// completedBar extracts the candle of a NEW_BAR event.
// Returns false for any other event and for incomplete bars.
func (e Event) completedBar() (*domain.Candle, bool) {
	if e.Type != EventNewBar || e.Candle == nil || !e.Candle.Completed {
		return nil, false
	}
	return e.Candle, true
}
