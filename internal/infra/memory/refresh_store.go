package memory

import (
	"context"
	"sync"

	"quizlink-service/internal/domain"
)

// RefreshStore is an in-memory implementation of auth.RefreshStore.
type RefreshStore struct {
	mu      sync.Mutex
	records map[string]*domain.RefreshRecord
}

func NewRefreshStore() *RefreshStore {
	return &RefreshStore{
		records: make(map[string]*domain.RefreshRecord),
	}
}

func (s *RefreshStore) Save(_ context.Context, record *domain.RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *record
	s.records[record.TokenHash] = &stored
	return nil
}

// Take removes and returns the record, so concurrent rotations of the same
// token produce exactly one winner.
func (s *RefreshStore) Take(_ context.Context, tokenHash string) (*domain.RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[tokenHash]
	if !ok {
		return nil, domain.ErrInvalidRefreshToken
	}
	delete(s.records, tokenHash)
	out := *record
	return &out, nil
}
