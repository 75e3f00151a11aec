package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// SessionStore implements storage.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

var _ storage.SessionStore = (*SessionStore)(nil)

const sessionColumns = `
	session_id, run_id, session_date, symbol,
	final_state, host_status, zone_status, resistance, support,
	bar_count, signal_count, trade_count, error_message,
	started_at_ms, finished_at_ms`

// Insert adds a session. Returns ErrDuplicateKey if session_id exists.
func (s *SessionStore) Insert(ctx context.Context, r *domain.SessionRecord) (err error) {
	if r == nil || r.SessionID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_session", start, err) }(time.Now())

	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = s.pool.Exec(ctx, query,
		r.SessionID, r.RunID, r.Date, r.Symbol,
		r.FinalState, string(r.HostStatus), string(r.ZoneStatus), r.Resistance, r.Support,
		r.BarCount, r.SignalCount, r.TradeCount, r.ErrorMessage,
		r.StartedAtMs, r.FinishedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID retrieves a session. Returns ErrNotFound if not exists.
func (s *SessionStore) GetByID(ctx context.Context, sessionID string) (_ *domain.SessionRecord, err error) {
	defer func(start time.Time) { observe("get_session", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, sessionID)
	r, err := scanSession(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}
	return r, nil
}

// GetByRunID retrieves all sessions of a run, ordered by date then symbol.
func (s *SessionStore) GetByRunID(ctx context.Context, runID string) (_ []*domain.SessionRecord, err error) {
	defer func(start time.Time) { observe("get_sessions_by_run", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE run_id = $1 ORDER BY session_date ASC, symbol ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query sessions by run: %w", err)
	}
	defer rows.Close()

	var result []*domain.SessionRecord
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return result, nil
}

func scanSession(row pgx.Row) (*domain.SessionRecord, error) {
	var r domain.SessionRecord
	var hostStatus, zoneStatus string
	err := row.Scan(
		&r.SessionID, &r.RunID, &r.Date, &r.Symbol,
		&r.FinalState, &hostStatus, &zoneStatus, &r.Resistance, &r.Support,
		&r.BarCount, &r.SignalCount, &r.TradeCount, &r.ErrorMessage,
		&r.StartedAtMs, &r.FinishedAtMs,
	)
	if err != nil {
		return nil, err
	}
	r.HostStatus = domain.HostStatus(hostStatus)
	r.ZoneStatus = domain.ZoneStatus(zoneStatus)
	return &r, nil
}
