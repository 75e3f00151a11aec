// Package risk implements the integer-cent risk arithmetic used by the
// decision engine: R-value, targets, R-multiples, trailing stop and
// excursion measurements.
package risk

import (
	"errors"
	"math"

	"breakout-lab/internal/domain"
)

// ErrInvalidArgument is returned when a numeric precondition is violated.
var ErrInvalidArgument = errors.New("invalid argument")

// Multiples holds the R multiples used for the three profit targets.
type Multiples struct {
	First  float64
	Second float64
	Third  float64
}

// DefaultMultiples are the 1R/2R/3R targets.
var DefaultMultiples = Multiples{First: 1, Second: 2, Third: 3}

// Targets holds the three target prices in cents.
type Targets struct {
	Target1R int64
	Target2R int64
	Target3R int64
}

// ComputeRValue returns |entry - stop| in cents. Zero is a degenerate risk
// unit that callers must guard against.
func ComputeRValue(entry, stop int64) int64 {
	if entry >= stop {
		return entry - stop
	}
	return stop - entry
}

// ComputeTargetPrice returns entry moved multiple*rValue in the favorable
// direction. The offset is rounded half-up to whole cents.
func ComputeTargetPrice(entry, rValue int64, multiple float64, dir domain.Direction) int64 {
	offset := roundHalfUp(float64(rValue) * multiple)
	if dir == domain.DirectionShort {
		return entry - offset
	}
	return entry + offset
}

// ComputeTargets returns the three target prices for the given multiples.
func ComputeTargets(entry, rValue int64, dir domain.Direction, m Multiples) Targets {
	return Targets{
		Target1R: ComputeTargetPrice(entry, rValue, m.First, dir),
		Target2R: ComputeTargetPrice(entry, rValue, m.Second, dir),
		Target3R: ComputeTargetPrice(entry, rValue, m.Third, dir),
	}
}

// ComputeRMultiple expresses the move from entry to exit in units of rValue.
// Returns ErrInvalidArgument when rValue <= 0.
func ComputeRMultiple(entry, exit, rValue int64, dir domain.Direction) (float64, error) {
	if rValue <= 0 {
		return 0, ErrInvalidArgument
	}
	var move int64
	if dir == domain.DirectionShort {
		move = entry - exit
	} else {
		move = exit - entry
	}
	return RoundR(float64(move) / float64(rValue)), nil
}

// RoundR rounds to two decimals with ties toward +Inf on the scaled value:
// RoundR(-1.555) == -1.55, RoundR(1.555) == 1.56.
func RoundR(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}

// DetermineStopLevel returns the initial stop for a breakout in dir:
// support for LONG, resistance for SHORT.
func DetermineStopLevel(zone *domain.DecisionZone, dir domain.Direction) int64 {
	if dir == domain.DirectionShort {
		return zone.Resistance
	}
	return zone.Support
}

// ComputeTrailingStop moves the stop to breakeven once 1R was reached.
func ComputeTrailingStop(initialStop, entryPrice int64, reached1R bool) int64 {
	if reached1R {
		return entryPrice
	}
	return initialStop
}

// ComputeMaxFavorableR returns the best excursion over bars, in R.
// bars must already be restricted to those after entry.
func ComputeMaxFavorableR(bars []domain.Candle, entry, rValue int64, dir domain.Direction) float64 {
	if len(bars) == 0 || rValue == 0 {
		return 0
	}
	var excursion int64
	if dir == domain.DirectionShort {
		excursion = entry - minLow(bars)
	} else {
		excursion = maxHigh(bars) - entry
	}
	return RoundR(float64(excursion) / float64(rValue))
}

// ComputeMaxAdverseR returns the worst excursion over bars, in R.
// bars must already be restricted to those after entry.
func ComputeMaxAdverseR(bars []domain.Candle, entry, rValue int64, dir domain.Direction) float64 {
	if len(bars) == 0 || rValue == 0 {
		return 0
	}
	var excursion int64
	if dir == domain.DirectionShort {
		excursion = maxHigh(bars) - entry
	} else {
		excursion = entry - minLow(bars)
	}
	return RoundR(float64(excursion) / float64(rValue))
}

func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

func maxHigh(bars []domain.Candle) int64 {
	high := bars[0].High
	for _, b := range bars[1:] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}

func minLow(bars []domain.Candle) int64 {
	low := bars[0].Low
	for _, b := range bars[1:] {
		if b.Low < low {
			low = b.Low
		}
	}
	return low
}
