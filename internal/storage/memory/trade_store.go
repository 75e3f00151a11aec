package memory

import (
	"context"
	"sort"
	"sync"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by (session_id, trade_id)
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.TradeRecord),
	}
}

func tradeKey(sessionID, tradeID string) string {
	return sessionID + "|" + tradeID
}

// Insert adds a trade. Returns ErrDuplicateKey if (session_id, trade_id) exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.SessionID == "" || t.ID == "" || !t.Direction.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tradeKey(t.SessionID, t.ID)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	tradeCopy := *t
	s.data[key] = &tradeCopy
	return nil
}

// GetBySessionID retrieves a session's trades ordered by entry time.
func (s *TradeStore) GetBySessionID(_ context.Context, sessionID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if t.SessionID == sessionID {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].EntryTimestampMs < result[j].EntryTimestampMs
	})
	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
