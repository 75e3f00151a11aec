// Package session resolves the exchange-local trading window of a day.
package session

import (
	"errors"
	"fmt"
	"time"

	"breakout-lab/internal/config"
)

// DateLayout is the layout of session dates.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("invalid session date")

// Window holds the UTC millisecond instants of one session.
type Window struct {
	Date           string
	ZoneStartMs    int64
	ZoneEndMs      int64
	ExecutionEndMs int64
}

// Compute resolves the window for date in the configured timezone.
// DST transitions are handled by the location database.
func Compute(date string, cfg config.SessionConfig) (Window, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Window{}, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	at := func(clock string) (int64, error) {
		m, err := config.ParseClock(clock)
		if err != nil {
			return 0, err
		}
		t := time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, loc)
		return t.UnixMilli(), nil
	}

	w := Window{Date: date}
	if w.ZoneStartMs, err = at(cfg.ZoneStart); err != nil {
		return Window{}, err
	}
	if w.ZoneEndMs, err = at(cfg.ZoneEnd); err != nil {
		return Window{}, err
	}
	if w.ExecutionEndMs, err = at(cfg.ExecutionEnd); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Contains reports whether a bar starting at ts belongs to the session.
func (w Window) Contains(ts int64) bool {
	return ts >= w.ZoneStartMs && ts < w.ExecutionEndMs
}

// TradingDays returns the weekdays in [from, to] as YYYY-MM-DD.
// Exchange holidays are not excluded; a holiday simply has no bars.
func TradingDays(from, to string) ([]string, error) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, from)
	}
	end, err := time.Parse(DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, to)
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d.Format(DateLayout))
	}
	return days, nil
}
