package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fleepgift/coinledger/internal/repos/drafts"
)

type entry struct {
	draft     drafts.Draft
	expiresAt time.Time
}

type Store struct {
	mu      sync.Mutex
	entries map[int64]entry
	now     func() time.Time
}

var _ drafts.Store = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Store {
	return &Store{entries: make(map[int64]entry), now: now}
}

func (s *Store) Load(_ context.Context, operatorID int64) (drafts.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[operatorID]
	if !ok {
		return drafts.Draft{}, drafts.ErrDraftNotFound
	}

	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, operatorID)

		return drafts.Draft{}, drafts.ErrDraftNotFound
	}

	return e.draft, nil
}

// Save stores d; a non-positive ttl keeps it until deleted.
func (s *Store) Save(_ context.Context, operatorID int64, d drafts.Draft, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{draft: d}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.entries[operatorID] = e

	return nil
}

func (s *Store) Delete(_ context.Context, operatorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, operatorID)

	return nil
}
