package memory

import (
	"context"
	"sync"

	"quizlink-service/internal/domain"
)

// CredentialStore is an in-memory implementation of auth.CredentialPersistence.
type CredentialStore struct {
	mu   sync.Mutex
	pair *domain.CredentialPair
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

func (s *CredentialStore) Load(_ context.Context) (*domain.CredentialPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair == nil {
		return nil, nil
	}
	out := *s.pair
	return &out, nil
}

func (s *CredentialStore) Store(_ context.Context, pair *domain.CredentialPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *pair
	s.pair = &stored
	return nil
}

func (s *CredentialStore) Erase(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = nil
	return nil
}
