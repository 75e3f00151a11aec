package domain

// TradeStatus is the lifecycle status of a Trade.
type TradeStatus string

// Trade status constants
const (
	TradeOpen           TradeStatus = "OPEN"
	TradeStoppedOut     TradeStatus = "STOPPED_OUT"
	TradeTargetHit      TradeStatus = "TARGET_HIT"
	TradeSessionExpired TradeStatus = "SESSION_EXPIRED"
)

// Trade is a position opened on a confirmation signal.
// Corresponds to trades table in PostgreSQL.
type Trade struct {
	ID        string // {date}_{symbol}_{direction}_{attempt}
	Date      string // session date YYYY-MM-DD
	Symbol    string
	Direction Direction

	EntryPrice  int64 // cents
	StopLevel   int64 // initial stop, fixed
	CurrentStop int64 // trailing stop
	RValue      int64 // |EntryPrice - StopLevel|
	Target1R    int64
	Target2R    int64
	Target3R    int64

	EntryTimestampMs int64
	Status           TradeStatus
	EntrySignal      Signal
}

// IsOpen reports whether the trade is still live.
func (t *Trade) IsOpen() bool {
	return t.Status == TradeOpen
}

// OutcomeResult classifies how a trade resolved.
type OutcomeResult string

// Outcome result constants
const (
	ResultLoss           OutcomeResult = "LOSS"
	ResultBreakevenStop  OutcomeResult = "BREAKEVEN_STOP"
	ResultWin2R          OutcomeResult = "WIN_2R"
	ResultWin3R          OutcomeResult = "WIN_3R"
	ResultSessionTimeout OutcomeResult = "SESSION_TIMEOUT"
)

// IsWin reports whether the result is a target win.
func (r OutcomeResult) IsWin() bool {
	return r == ResultWin2R || r == ResultWin3R
}

// TradeOutcome is written exactly once when a trade resolves.
// Corresponds to trade_outcomes table in PostgreSQL.
type TradeOutcome struct {
	TradeID string
	Result  OutcomeResult

	MaxFavorableR float64
	MaxAdverseR   float64

	ExitPrice       int64 // cents
	ExitTimestampMs int64
	RealizedR       float64

	FirstThresholdReached int   // highest of 0,1,2,3 reached before exit
	Timestamp1R           int64 // 0 = never reached
	Timestamp2R           int64
	Timestamp3R           int64
	TimestampStop         int64 // 0 unless stop-triggered
	BarsHeld              int
}
