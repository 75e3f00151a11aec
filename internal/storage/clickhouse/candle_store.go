package clickhouse

import (
	"context"
	"fmt"
	"time"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
// MergeTree does not enforce keys, so duplicates are checked before insert.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds bars in one batch. Fails entire batch on duplicate (symbol, timestamp_ms).
func (s *CandleStore) InsertBulk(ctx context.Context, candles []*domain.Candle) (err error) {
	if len(candles) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_candles", start, err) }(time.Now())

	type key struct {
		symbol      string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(candles))
	for _, c := range candles {
		if c == nil || c.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{c.Symbol, c.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, c := range candles {
		exists, err := s.exists(ctx, c.Symbol, c.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, timestamp_ms, open, high, low, close, volume, bar_size_minutes
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			c.Symbol, c.TimestampMs, c.Open, c.High, c.Low, c.Close, c.Volume,
			uint16(c.BarSizeMinutes),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves bars for symbol within [start, end), ordered by timestamp ASC.
// Stored bars are always completed.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) (_ []*domain.Candle, err error) {
	defer func(begin time.Time) { observe("get_candles", begin, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `
		SELECT symbol, timestamp_ms, open, high, low, close, volume, bar_size_minutes
		FROM candles
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC
	`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var candles []*domain.Candle
	for rows.Next() {
		var c domain.Candle
		var barSize uint16
		if err := rows.Scan(&c.Symbol, &c.TimestampMs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &barSize); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		c.BarSizeMinutes = int(barSize)
		c.Completed = true
		candles = append(candles, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}
	return candles, nil
}

func (s *CandleStore) exists(ctx context.Context, symbol string, timestampMs int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM candles
		WHERE symbol = ? AND timestamp_ms = ?
	`, symbol, timestampMs).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
