package memory

import (
	"context"
	"sync"

	"quizlink-service/internal/domain"
)

// UserStore is an in-memory implementation of auth.UserStore.
type UserStore struct {
	mu         sync.RWMutex
	byID       map[string]*domain.User
	byIdentity map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:       make(map[string]*domain.User),
		byIdentity: make(map[string]string),
	}
}

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byIdentity[user.Identity]; taken {
		return domain.ErrIdentityTaken
	}
	stored := *user
	stored.SecretHash = append([]byte(nil), user.SecretHash...)
	s.byID[user.ID] = &stored
	s.byIdentity[user.Identity] = user.ID
	return nil
}

func (s *UserStore) Get(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (s *UserStore) GetByIdentity(_ context.Context, identity string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byIdentity[identity]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(s.byID[userID]), nil
}

func cloneUser(user *domain.User) *domain.User {
	out := *user
	out.SecretHash = append([]byte(nil), user.SecretHash...)
	return &out
}
