package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	session_id, seq, direction, signal_type, timestamp_ms, price, attempt_number,
	trigger_open, trigger_high, trigger_low, trigger_close, trigger_volume`

// InsertBulk adds signals in one transaction. Fails entire batch on any duplicate.
func (s *SignalStore) InsertBulk(ctx context.Context, signals []*domain.SignalRecord) (err error) {
	if len(signals) == 0 {
		return nil
	}
	for _, r := range signals {
		if r == nil || r.SessionID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("insert_signals", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, r := range signals {
		c := r.TriggerCandle
		_, err = tx.Exec(ctx, query,
			r.SessionID, r.Seq, string(r.Direction), string(r.Type), r.TimestampMs, r.Price, r.AttemptNumber,
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert signal: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySessionID retrieves a session's signals ordered by seq.
// Trigger candles are rebuilt from the stored OHLCV and the signal timestamp.
func (s *SignalStore) GetBySessionID(ctx context.Context, sessionID string) (_ []*domain.SignalRecord, err error) {
	defer func(start time.Time) { observe("get_signals", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT `+signalColumns+` FROM signals
		WHERE session_id = $1 ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var result []*domain.SignalRecord
	for rows.Next() {
		r, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return result, nil
}

func scanSignal(row pgx.Row) (*domain.SignalRecord, error) {
	var r domain.SignalRecord
	var direction, typ string
	c := &r.TriggerCandle
	err := row.Scan(
		&r.SessionID, &r.Seq, &direction, &typ, &r.TimestampMs, &r.Price, &r.AttemptNumber,
		&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
	)
	if err != nil {
		return nil, err
	}
	r.Direction = domain.Direction(direction)
	r.Type = domain.SignalType(typ)
	c.TimestampMs = r.TimestampMs
	c.Completed = true
	return &r, nil
}
