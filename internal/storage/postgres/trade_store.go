package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	session_id, trade_id, session_date, symbol, direction,
	entry_price, stop_level, current_stop, r_value,
	target_1r, target_2r, target_3r,
	entry_timestamp_ms, status, entry_attempt`

// Insert adds a trade. Returns ErrDuplicateKey if (session_id, trade_id) exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.TradeRecord) (err error) {
	if t == nil || t.SessionID == "" || t.ID == "" || !t.Direction.IsValid() {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_trade", start, err) }(time.Now())

	query := `INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = s.pool.Exec(ctx, query,
		t.SessionID, t.ID, t.Date, t.Symbol, string(t.Direction),
		t.EntryPrice, t.StopLevel, t.CurrentStop, t.RValue,
		t.Target1R, t.Target2R, t.Target3R,
		t.EntryTimestampMs, string(t.Status), t.EntrySignal.AttemptNumber,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetBySessionID retrieves a session's trades ordered by entry time.
// EntrySignal is rebuilt as the confirmation at entry; its trigger candle
// is available from the signal log.
func (s *TradeStore) GetBySessionID(ctx context.Context, sessionID string) (_ []*domain.TradeRecord, err error) {
	defer func(start time.Time) { observe("get_trades", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE session_id = $1 ORDER BY entry_timestamp_ms ASC, trade_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return result, nil
}

func scanTrade(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	var direction, status string
	var attempt int
	err := row.Scan(
		&t.SessionID, &t.ID, &t.Date, &t.Symbol, &direction,
		&t.EntryPrice, &t.StopLevel, &t.CurrentStop, &t.RValue,
		&t.Target1R, &t.Target2R, &t.Target3R,
		&t.EntryTimestampMs, &status, &attempt,
	)
	if err != nil {
		return nil, err
	}
	t.Direction = domain.Direction(direction)
	t.Status = domain.TradeStatus(status)
	t.EntrySignal = domain.Signal{
		Direction:     t.Direction,
		Type:          domain.SignalConfirmation,
		TimestampMs:   t.EntryTimestampMs,
		Price:         t.EntryPrice,
		AttemptNumber: attempt,
	}
	return &t, nil
}
