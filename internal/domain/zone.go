package domain

// ZoneStatus is the outcome of decision zone evaluation.
type ZoneStatus string

const (
	ZoneDefined           ZoneStatus = "DEFINED"
	ZoneNoTradeChoppy     ZoneStatus = "NO_TRADE_CHOPPY"
	ZoneNoTradeDegenerate ZoneStatus = "NO_TRADE_DEGENERATE"
)

// DecisionZone is the resistance/support band seeded from the session's first
// completed bar. Only Status changes after creation.
type DecisionZone struct {
	Resistance     int64 // cents
	Support        int64 // cents
	Spread         int64 // Resistance - Support
	Status         ZoneStatus
	DefinedAtMs    int64
	SourceBars     []Candle
	PremarketPrice int64 // informational, cents
}

// Midpoint returns (Resistance + Support) / 2 in cents.
func (z *DecisionZone) Midpoint() float64 {
	return float64(z.Resistance+z.Support) / 2
}
