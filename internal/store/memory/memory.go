package memory

import (
	"context"
	"sync"

	"github.com/vovakirdan/livepoll-server/internal/store"
)

// Store keeps poll history in process memory.
type Store struct {
	mu      sync.RWMutex
	records []*store.PollRecord
	limit   int
}

// New creates an in-memory history store. limit > 0 caps retention, dropping the oldest records.
func New(limit int) *Store {
	return &Store{limit: limit}
}

// Append stores a closed session.
func (s *Store) Append(_ context.Context, rec *store.PollRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if s.limit > 0 && len(s.records) > s.limit {
		// the dropped prefix is released the next time append reallocates
		s.records = s.records[len(s.records)-s.limit:]
	}
	return nil
}

// List returns a copy of the retained history, oldest first.
func (s *Store) List(_ context.Context) ([]*store.PollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.PollRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
