package domain

// Candle represents one price bar for an instrument.
// Prices are integer cents, TimestampMs is the bar's start instant in UTC ms.
// Only completed bars drive decision transitions.
type Candle struct {
	Symbol         string
	TimestampMs    int64 // bar start (ms)
	Open           int64 // cents
	High           int64 // cents
	Low            int64 // cents
	Close          int64 // cents
	Volume         int64
	Completed      bool
	BarSizeMinutes int
}
