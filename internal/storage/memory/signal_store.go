package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SignalRecord // keyed by (session_id, seq)
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.SignalRecord),
	}
}

func signalKey(sessionID string, seq int) string {
	return fmt.Sprintf("%s|%d", sessionID, seq)
}

// InsertBulk adds multiple signals. Fails entire batch on duplicate.
func (s *SignalStore) InsertBulk(_ context.Context, signals []*domain.SignalRecord) error {
	if len(signals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(signals))
	for _, r := range signals {
		if r == nil || r.SessionID == "" {
			return storage.ErrInvalidInput
		}
		key := signalKey(r.SessionID, r.Seq)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range signals {
		recordCopy := *r
		s.data[signalKey(r.SessionID, r.Seq)] = &recordCopy
	}
	return nil
}

// GetBySessionID retrieves a session's signals ordered by seq.
func (s *SignalStore) GetBySessionID(_ context.Context, sessionID string) ([]*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignalRecord
	for _, r := range s.data {
		if r.SessionID == sessionID {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

var _ storage.SignalStore = (*SignalStore)(nil)
