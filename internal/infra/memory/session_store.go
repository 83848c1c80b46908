package memory

import (
	"context"
	"sort"
	"sync"

	"quizlink-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. Each
// session carries its own mutex, so Update calls for different sessions
// never contend.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *SessionStore) Create(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &sessionEntry{session: session.Clone()}
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

func (s *SessionStore) Update(_ context.Context, sessionID string, fn func(*domain.Session) error) (*domain.Session, error) {
	entry, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	fnErr := fn(entry.session)
	return entry.session.Clone(), fnErr
}

func (s *SessionStore) ListByTaker(_ context.Context, takerID string) ([]*domain.Session, error) {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0)
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	out := make([]*domain.Session, 0)
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.session.TakerID == takerID {
			out = append(out, entry.session.Clone())
		}
		entry.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *SessionStore) entry(sessionID string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return entry, nil
}
