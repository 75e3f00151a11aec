package domain

// SignalType identifies a stage of the break/retest/confirm entry pattern.
type SignalType string

const (
	SignalBreak        SignalType = "BREAK"
	SignalRetest       SignalType = "RETEST"
	SignalConfirmation SignalType = "CONFIRMATION"
	SignalBreakFailure SignalType = "BREAK_FAILURE"
)

// Signal is an append-only record of a pattern stage observed on a bar.
type Signal struct {
	Direction     Direction
	Type          SignalType
	TimestampMs   int64
	Price         int64 // cents, trigger bar close
	TriggerCandle Candle
	AttemptNumber int // 1-based break attempt for Direction
}
