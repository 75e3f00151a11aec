package memory

import (
	"context"
	"sort"
	"sync"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OutcomeRecord // keyed by (session_id, trade_id)
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[string]*domain.OutcomeRecord),
	}
}

// Insert adds an outcome. Returns ErrDuplicateKey if (session_id, trade_id) exists.
func (s *OutcomeStore) Insert(_ context.Context, o *domain.OutcomeRecord) error {
	if o == nil || o.SessionID == "" || o.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tradeKey(o.SessionID, o.TradeID)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	outcomeCopy := *o
	s.data[key] = &outcomeCopy
	return nil
}

// GetBySessionID retrieves a session's outcomes ordered by exit time.
func (s *OutcomeStore) GetBySessionID(_ context.Context, sessionID string) ([]*domain.OutcomeRecord, error) {
	return s.filter(func(o *domain.OutcomeRecord) bool { return o.SessionID == sessionID }), nil
}

// GetBySymbol retrieves all outcomes for symbol ordered by exit time, then trade ID.
func (s *OutcomeStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.OutcomeRecord, error) {
	return s.filter(func(o *domain.OutcomeRecord) bool { return o.Symbol == symbol }), nil
}

func (s *OutcomeStore) filter(keep func(*domain.OutcomeRecord) bool) []*domain.OutcomeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OutcomeRecord
	for _, o := range s.data {
		if keep(o) {
			outcomeCopy := *o
			result = append(result, &outcomeCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExitTimestampMs != result[j].ExitTimestampMs {
			return result[i].ExitTimestampMs < result[j].ExitTimestampMs
		}
		if result[i].TradeID != result[j].TradeID {
			return result[i].TradeID < result[j].TradeID
		}
		return result[i].SessionID < result[j].SessionID
	})
	return result
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)
