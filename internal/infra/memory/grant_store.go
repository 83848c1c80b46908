package memory

import (
	"context"
	"sort"
	"sync"

	"quizlink-service/internal/domain"
)

// GrantStore is an in-memory implementation of app.GrantStore.
type GrantStore struct {
	mu     sync.RWMutex
	grants map[string]map[string]*domain.ShareGrant
}

func NewGrantStore() *GrantStore {
	return &GrantStore{
		grants: make(map[string]map[string]*domain.ShareGrant),
	}
}

func (s *GrantStore) Upsert(_ context.Context, grant *domain.ShareGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byGrantee, ok := s.grants[grant.QuizID]
	if !ok {
		byGrantee = make(map[string]*domain.ShareGrant)
		s.grants[grant.QuizID] = byGrantee
	}
	stored := *grant
	byGrantee[grant.GranteeID] = &stored
	return nil
}

func (s *GrantStore) Get(_ context.Context, quizID, granteeID string) (*domain.ShareGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[quizID][granteeID]
	if !ok {
		return nil, domain.ErrGrantNotFound
	}
	out := *grant
	return &out, nil
}

func (s *GrantStore) Delete(_ context.Context, quizID, granteeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[quizID][granteeID]; !ok {
		return domain.ErrGrantNotFound
	}
	delete(s.grants[quizID], granteeID)
	return nil
}

func (s *GrantStore) ListByQuiz(_ context.Context, quizID string) ([]*domain.ShareGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ShareGrant, 0, len(s.grants[quizID]))
	for _, grant := range s.grants[quizID] {
		clone := *grant
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *GrantStore) ListByGrantee(_ context.Context, granteeID string) ([]*domain.ShareGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ShareGrant, 0)
	for _, byGrantee := range s.grants {
		if grant, ok := byGrantee[granteeID]; ok {
			clone := *grant
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
