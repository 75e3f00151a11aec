package replay

import (
	"errors"
	"testing"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/machine"
)

func TestSortCandles(t *testing.T) {
	candles := []*domain.Candle{bar(300), bar(100), bar(200)}
	SortCandles(candles)

	for i, want := range []int64{100, 200, 300} {
		if candles[i].TimestampMs != want {
			t.Errorf("Position %d: got %d, want %d", i, candles[i].TimestampMs, want)
		}
	}
}

func TestValidateOrdering(t *testing.T) {
	tests := []struct {
		name    string
		ts      []int64
		wantErr bool
	}{
		{"empty", nil, false},
		{"single", []int64{100}, false},
		{"ascending", []int64{100, 200, 300}, false},
		{"duplicate", []int64{100, 200, 200}, true},
		{"descending", []int64{100, 300, 200}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var candles []*domain.Candle
			for _, ts := range tt.ts {
				candles = append(candles, bar(ts))
			}
			err := ValidateOrdering(candles)
			if tt.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidOrdering) {
				t.Errorf("Expected ErrInvalidOrdering, got %v", err)
			}
		})
	}
}

func TestBuildSessionEvents_FiltersWindow(t *testing.T) {
	w := testWindow()
	candles := []*domain.Candle{bar(w.ZoneStartMs - 1), bar(w.ZoneStartMs), bar(w.ExecutionEndMs - 1), bar(w.ExecutionEndMs)}

	events := BuildSessionEvents("SPY", w, candles)

	if len(events) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(events))
	}
	if events[0].Type != machine.EventSessionStart || events[3].Type != machine.EventSessionEnd {
		t.Errorf("Session not bracketed: %s ... %s", events[0].Type, events[3].Type)
	}
	if events[1].Candle.TimestampMs != w.ZoneStartMs {
		t.Errorf("First bar mismatch: %d", events[1].Candle.TimestampMs)
	}
}
