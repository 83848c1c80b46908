package memory

import (
	"context"
	"sort"
	"sync"

	"quizlink-service/internal/domain"
)

// QuizStore is an in-memory implementation of app.QuizStore.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]*domain.Quiz
	byCode  map[string]string
}

func NewQuizStore() *QuizStore {
	return &QuizStore{
		quizzes: make(map[string]*domain.Quiz),
		byCode:  make(map[string]string),
	}
}

func (s *QuizStore) Create(_ context.Context, quiz *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quiz.ShareCode != "" {
		if _, taken := s.byCode[quiz.ShareCode]; taken {
			return domain.ErrShareCodeTaken
		}
		s.byCode[quiz.ShareCode] = quiz.ID
	}
	stored := quiz.Clone()
	s.quizzes[quiz.ID] = &stored
	return nil
}

func (s *QuizStore) Get(_ context.Context, quizID string) (*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	out := quiz.Clone()
	return &out, nil
}

func (s *QuizStore) Save(_ context.Context, quiz *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.quizzes[quiz.ID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if quiz.ShareCode != prev.ShareCode {
		if owner, taken := s.byCode[quiz.ShareCode]; taken && owner != quiz.ID {
			return domain.ErrShareCodeTaken
		}
		if prev.ShareCode != "" {
			delete(s.byCode, prev.ShareCode)
		}
		if quiz.ShareCode != "" {
			s.byCode[quiz.ShareCode] = quiz.ID
		}
	}
	stored := quiz.Clone()
	s.quizzes[quiz.ID] = &stored
	return nil
}

func (s *QuizStore) Delete(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if quiz.ShareCode != "" {
		delete(s.byCode, quiz.ShareCode)
	}
	delete(s.quizzes, quizID)
	return nil
}

func (s *QuizStore) Resolve(_ context.Context, shareCode string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quizID, ok := s.byCode[shareCode]
	if !ok {
		return "", domain.ErrShareCodeNotFound
	}
	return quizID, nil
}

func (s *QuizStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Quiz, 0)
	for _, quiz := range s.quizzes {
		if quiz.OwnerID == ownerID {
			clone := quiz.Clone()
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
