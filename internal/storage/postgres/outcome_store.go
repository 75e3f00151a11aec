package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *Pool
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(pool *Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)

const outcomeColumns = `
	session_id, trade_id, session_date, symbol, direction, result,
	max_favorable_r, max_adverse_r, exit_price, exit_timestamp_ms, realized_r,
	first_threshold_reached, timestamp_1r, timestamp_2r, timestamp_3r,
	timestamp_stop, bars_held`

// Insert adds an outcome. Returns ErrDuplicateKey if (session_id, trade_id) exists.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.OutcomeRecord) (err error) {
	if o == nil || o.SessionID == "" || o.TradeID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_outcome", start, err) }(time.Now())

	query := `INSERT INTO trade_outcomes (` + outcomeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = s.pool.Exec(ctx, query,
		o.SessionID, o.TradeID, o.Date, o.Symbol, string(o.Direction), string(o.Result),
		o.MaxFavorableR, o.MaxAdverseR, o.ExitPrice, o.ExitTimestampMs, o.RealizedR,
		o.FirstThresholdReached, o.Timestamp1R, o.Timestamp2R, o.Timestamp3R,
		o.TimestampStop, o.BarsHeld,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// GetBySessionID retrieves a session's outcomes ordered by exit time.
func (s *OutcomeStore) GetBySessionID(ctx context.Context, sessionID string) (_ []*domain.OutcomeRecord, err error) {
	defer func(start time.Time) { observe("get_outcomes_by_session", start, err) }(time.Now())
	return s.query(ctx, `SELECT `+outcomeColumns+` FROM trade_outcomes
		WHERE session_id = $1 ORDER BY exit_timestamp_ms ASC, trade_id ASC, session_id ASC`, sessionID)
}

// GetBySymbol retrieves all outcomes for symbol ordered by exit time, then trade ID.
func (s *OutcomeStore) GetBySymbol(ctx context.Context, symbol string) (_ []*domain.OutcomeRecord, err error) {
	defer func(start time.Time) { observe("get_outcomes_by_symbol", start, err) }(time.Now())
	return s.query(ctx, `SELECT `+outcomeColumns+` FROM trade_outcomes
		WHERE symbol = $1 ORDER BY exit_timestamp_ms ASC, trade_id ASC, session_id ASC`, symbol)
}

func (s *OutcomeStore) query(ctx context.Context, sql string, arg any) ([]*domain.OutcomeRecord, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var result []*domain.OutcomeRecord
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return result, nil
}

func scanOutcome(row pgx.Row) (*domain.OutcomeRecord, error) {
	var o domain.OutcomeRecord
	var direction, result string
	err := row.Scan(
		&o.SessionID, &o.TradeID, &o.Date, &o.Symbol, &direction, &result,
		&o.MaxFavorableR, &o.MaxAdverseR, &o.ExitPrice, &o.ExitTimestampMs, &o.RealizedR,
		&o.FirstThresholdReached, &o.Timestamp1R, &o.Timestamp2R, &o.Timestamp3R,
		&o.TimestampStop, &o.BarsHeld,
	)
	if err != nil {
		return nil, err
	}
	o.Direction = domain.Direction(direction)
	o.Result = domain.OutcomeResult(result)
	return &o, nil
}
