package idhash

import (
	"fmt"

	"breakout-lab/internal/domain"
)

// ComputeTradeID builds the deterministic trade identifier.
// Format: {date}_{symbol}_{direction}_{attemptNumber}
func ComputeTradeID(
	date string,
	symbol string,
	direction domain.Direction,
	attemptNumber int,
) string {
	return fmt.Sprintf("%s_%s_%s_%d",
		date,
		symbol,
		string(direction),
		attemptNumber,
	)
}
