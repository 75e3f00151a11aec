package memory

import "breakout-lab/internal/storage"

// NewStores returns empty in-memory result stores.
func NewStores() storage.Stores {
	return storage.Stores{
		Sessions: NewSessionStore(),
		Signals:  NewSignalStore(),
		Trades:   NewTradeStore(),
		Outcomes: NewOutcomeStore(),
	}
}
