package machine

import (
	"errors"
	"fmt"

	"breakout-lab/internal/risk"
)

// Config errors
var (
	ErrInvalidMaxBreakAttempts = errors.New("max break attempts must be >= 1")
	ErrInvalidZoneSpread       = errors.New("zone spread limits must be non-negative with a positive max percent")
	ErrInvalidBarSize          = errors.New("bar size minutes must be > 0")
	ErrInvalidMultiples        = errors.New("target multiples must be positive and strictly increasing")
)

// Config holds the engine parameters fixed at construction time.
type Config struct {
	MaxBreakAttempts     int
	MinZoneSpreadCents   int64
	MaxZoneSpreadPercent float64
	BarSizeMinutes       int
	Multiples            risk.Multiples
	TrailStopAt1R        bool
}

// DefaultConfig returns the default engine parameters.
func DefaultConfig() Config {
	return Config{
		MaxBreakAttempts:     3,
		MinZoneSpreadCents:   5,
		MaxZoneSpreadPercent: 3.0,
		BarSizeMinutes:       5,
		Multiples:            risk.DefaultMultiples,
		TrailStopAt1R:        true,
	}
}

// Validate checks that parameters are usable.
func (c Config) Validate() error {
	if c.MaxBreakAttempts < 1 {
		return ErrInvalidMaxBreakAttempts
	}
	if c.MinZoneSpreadCents < 0 || c.MaxZoneSpreadPercent <= 0 {
		return ErrInvalidZoneSpread
	}
	if c.BarSizeMinutes <= 0 {
		return ErrInvalidBarSize
	}
	m := c.Multiples
	if m.First <= 0 || m.Second <= m.First || m.Third <= m.Second {
		return fmt.Errorf("%w: got %v/%v/%v", ErrInvalidMultiples, m.First, m.Second, m.Third)
	}
	return nil
}
