package domain

// StrategyAggregate represents aggregate performance over resolved trades.
type StrategyAggregate struct {
	Symbol string

	// Counts
	TotalTrades     int
	Wins            int
	Losses          int
	BreakevenStops  int
	SessionTimeouts int
	Win3R           int
	Win2R           int
	WinRate         float64 // (WIN_2R + WIN_3R) / total

	// Realized R distribution
	MeanR      float64
	MedianR    float64
	P10R       float64
	P90R       float64
	MinR       float64
	MaxR       float64
	StddevR    float64
	TotalR     float64
	Expectancy float64 // mean R per trade, rounded

	// Drawdown on the cumulative R curve
	MaxDrawdownR         float64
	MaxConsecutiveLosses int

	// Excursions
	MeanMaxFavorableR float64
	MeanMaxAdverseR   float64
	MeanBarsHeld      float64
}
