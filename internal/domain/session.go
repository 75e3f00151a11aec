package domain

// HostStatus is how the host ended event delivery. The engine has no
// notion of it.
type HostStatus string

const (
	// HostStatusFinished: delivery ran until the machine reached a final state.
	HostStatusFinished HostStatus = "FINISHED"
	// HostStatusInterrupted: the host stopped delivery early, e.g. on shutdown.
	// FinalState is then the last non-final machine state.
	HostStatusInterrupted HostStatus = "INTERRUPTED"
)

// SessionRecord is the persisted summary of one (date, symbol) engine run.
// Corresponds to sessions table in PostgreSQL.
type SessionRecord struct {
	SessionID string // deterministic hash of date|symbol|run
	RunID     string // backtest run or live process identifier
	Date      string // YYYY-MM-DD
	Symbol    string

	FinalState string // machine top-level state after the last event
	HostStatus HostStatus
	ZoneStatus ZoneStatus
	Resistance int64
	Support    int64

	BarCount     int
	SignalCount  int
	TradeCount   int
	ErrorMessage string

	StartedAtMs  int64 // first bar timestamp, 0 when no bars
	FinishedAtMs int64 // last bar timestamp, 0 when no bars
}

// SignalRecord is a Signal tagged with its session for storage.
type SignalRecord struct {
	SessionID string
	Seq       int // position in the session's signal log
	Signal
}

// TradeRecord is a Trade tagged with its session for storage.
// Trade IDs repeat across runs, so records are keyed by (SessionID, ID).
type TradeRecord struct {
	SessionID string
	Trade
}

// OutcomeRecord is a TradeOutcome tagged with the fields reports group by.
type OutcomeRecord struct {
	SessionID string
	Date      string
	Symbol    string
	Direction Direction
	TradeOutcome
}
