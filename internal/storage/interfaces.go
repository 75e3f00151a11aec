package storage

import (
	"context"

	"breakout-lab/internal/domain"
)

// CandleStore provides access to the bar time series.
type CandleStore interface {
	// InsertBulk adds bars atomically. Returns ErrDuplicateKey if any
	// (symbol, timestamp) already exists or repeats within the batch.
	InsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetByTimeRange retrieves bars for symbol with start <= timestamp < end,
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Candle, error)
}

// SessionStore provides access to per-session summaries.
type SessionStore interface {
	// Insert adds a session. Returns ErrDuplicateKey if session_id exists.
	Insert(ctx context.Context, s *domain.SessionRecord) error

	// GetByID returns ErrNotFound if the session does not exist.
	GetByID(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// GetByRunID retrieves all sessions of a run, ordered by date then symbol.
	GetByRunID(ctx context.Context, runID string) ([]*domain.SessionRecord, error)
}

// SignalStore provides access to the signal log.
type SignalStore interface {
	// InsertBulk adds signals atomically. Key is (session_id, seq).
	InsertBulk(ctx context.Context, signals []*domain.SignalRecord) error

	// GetBySessionID retrieves a session's signals ordered by seq.
	GetBySessionID(ctx context.Context, sessionID string) ([]*domain.SignalRecord, error)
}

// TradeStore provides access to trades.
type TradeStore interface {
	// Insert adds a trade. Returns ErrDuplicateKey if (session_id, trade_id) exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// GetBySessionID retrieves a session's trades ordered by entry time.
	GetBySessionID(ctx context.Context, sessionID string) ([]*domain.TradeRecord, error)
}

// OutcomeStore provides access to trade outcomes.
type OutcomeStore interface {
	// Insert adds an outcome. Returns ErrDuplicateKey if (session_id, trade_id) exists.
	Insert(ctx context.Context, o *domain.OutcomeRecord) error

	// GetBySessionID retrieves a session's outcomes ordered by exit time.
	GetBySessionID(ctx context.Context, sessionID string) ([]*domain.OutcomeRecord, error)

	// GetBySymbol retrieves all outcomes for symbol ordered by exit time, then trade ID.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.OutcomeRecord, error)
}

// Stores bundles the result stores a session run writes to.
type Stores struct {
	Sessions SessionStore
	Signals  SignalStore
	Trades   TradeStore
	Outcomes OutcomeStore
}
