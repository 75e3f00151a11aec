package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/replay"
	"breakout-lab/internal/storage"
)

var csvHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

// LoadCSV reads bars with columns timestamp,open,high,low,close,volume.
// The header row is required. Timestamps are RFC3339 or Unix milliseconds.
// Prices are dollars and must be exact to the cent. Every bar is completed.
// Bars are returned sorted by timestamp; duplicates are rejected.
func LoadCSV(r io.Reader, symbol string, barSizeMinutes int) ([]*domain.Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	for i, name := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("%w: header column %d is %q, want %q", ErrInvalidCSV, i+1, header[i], name)
		}
	}

	var candles []*domain.Candle
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}

		c, err := parseRecord(record, symbol, barSizeMinutes)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, line, err)
		}
		candles = append(candles, c)
	}

	replay.SortCandles(candles)
	if err := replay.ValidateOrdering(candles); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	return candles, nil
}

// ImportCSV loads bars from r and stores them.
func ImportCSV(ctx context.Context, r io.Reader, store storage.CandleStore, symbol string, barSizeMinutes int) (int, error) {
	candles, err := LoadCSV(r, symbol, barSizeMinutes)
	if err != nil {
		return 0, err
	}
	if err := store.InsertBulk(ctx, candles); err != nil {
		return 0, fmt.Errorf("store bars: %w", err)
	}
	return len(candles), nil
}

func parseRecord(record []string, symbol string, barSizeMinutes int) (*domain.Candle, error) {
	ts, err := parseTimestamp(strings.TrimSpace(record[0]))
	if err != nil {
		return nil, err
	}

	var prices [4]int64
	for i := range prices {
		prices[i], err = parseCents(record[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %v", csvHeader[i+1], err)
		}
	}

	volume, err := decimal.NewFromString(strings.TrimSpace(record[5]))
	if err != nil || volume.IsNegative() {
		return nil, fmt.Errorf("volume: invalid value %q", record[5])
	}

	c := &domain.Candle{
		Symbol:         symbol,
		TimestampMs:    ts,
		Open:           prices[0],
		High:           prices[1],
		Low:            prices[2],
		Close:          prices[3],
		Volume:         volume.IntPart(),
		Completed:      true,
		BarSizeMinutes: barSizeMinutes,
	}
	if c.High < c.Low || c.High < max(c.Open, c.Close) || c.Low > min(c.Open, c.Close) {
		return nil, fmt.Errorf("inconsistent OHLC %d/%d/%d/%d", c.Open, c.High, c.Low, c.Close)
	}
	return c, nil
}

func parseTimestamp(s string) (int64, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q is neither RFC3339 nor Unix ms", s)
	}
	return t.UnixMilli(), nil
}

// parseCents converts a dollar string to integer cents without rounding.
func parseCents(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("price %q has sub-cent precision", s)
	}
	if !cents.IsPositive() {
		return 0, fmt.Errorf("price %q must be positive", s)
	}
	return cents.IntPart(), nil
}
