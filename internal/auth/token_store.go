package auth

import (
	"context"
	"sync"

	"quizlink-service/internal/domain"
)

// TokenStore holds the client's current credential pair. With persistence
// attached, Set and Clear write through so a restart keeps the login.
type TokenStore struct {
	mu          sync.RWMutex
	pair        *domain.CredentialPair
	persistence CredentialPersistence
}

// NewTokenStore builds a store; persistence may be nil for memory-only use.
func NewTokenStore(persistence CredentialPersistence) *TokenStore {
	return &TokenStore{persistence: persistence}
}

// Init loads a persisted pair, if any.
func (s *TokenStore) Init(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	pair, err := s.persistence.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()
	return nil
}

// Get returns the current pair and whether one is held.
func (s *TokenStore) Get() (domain.CredentialPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pair == nil {
		return domain.CredentialPair{}, false
	}
	return *s.pair, true
}

// Set replaces the current pair and writes it through.
func (s *TokenStore) Set(ctx context.Context, pair domain.CredentialPair) error {
	s.mu.Lock()
	stored := pair
	s.pair = &stored
	s.mu.Unlock()
	if s.persistence == nil {
		return nil
	}
	return s.persistence.Store(ctx, &pair)
}

// Clear drops the pair everywhere. Callers must re-authenticate afterwards.
func (s *TokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.pair = nil
	s.mu.Unlock()
	if s.persistence == nil {
		return nil
	}
	return s.persistence.Erase(ctx)
}
