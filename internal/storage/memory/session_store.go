package memory

import (
	"context"
	"sort"
	"sync"

	"breakout-lab/internal/domain"
	"breakout-lab/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SessionRecord // keyed by session_id
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]*domain.SessionRecord),
	}
}

// Insert adds a session. Returns ErrDuplicateKey if session_id exists.
func (s *SessionStore) Insert(_ context.Context, r *domain.SessionRecord) error {
	if r == nil || r.SessionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.SessionID]; exists {
		return storage.ErrDuplicateKey
	}
	recordCopy := *r
	s.data[r.SessionID] = &recordCopy
	return nil
}

// GetByID retrieves a session. Returns ErrNotFound if not exists.
func (s *SessionStore) GetByID(_ context.Context, sessionID string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[sessionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recordCopy := *r
	return &recordCopy, nil
}

// GetByRunID retrieves all sessions of a run, ordered by date then symbol.
func (s *SessionStore) GetByRunID(_ context.Context, runID string) ([]*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SessionRecord
	for _, r := range s.data {
		if r.RunID == runID {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

var _ storage.SessionStore = (*SessionStore)(nil)
