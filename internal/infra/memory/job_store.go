package memory

import (
	"context"
	"sort"
	"sync"

	"quizlink-service/internal/domain"
)

// JobStore is an in-memory implementation of app.JobStore with the same
// per-entry locking as SessionStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

type jobEntry struct {
	mu  sync.Mutex
	job *domain.IngestionJob
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*jobEntry),
	}
}

func (s *JobStore) Create(_ context.Context, job *domain.IngestionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = &jobEntry{job: job.Clone()}
	return nil
}

func (s *JobStore) Get(_ context.Context, jobID string) (*domain.IngestionJob, error) {
	entry, err := s.entry(jobID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.job.Clone(), nil
}

func (s *JobStore) Update(_ context.Context, jobID string, fn func(*domain.IngestionJob) error) (*domain.IngestionJob, error) {
	entry, err := s.entry(jobID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	fnErr := fn(entry.job)
	return entry.job.Clone(), fnErr
}

func (s *JobStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.IngestionJob, error) {
	s.mu.RLock()
	entries := make([]*jobEntry, 0)
	for _, entry := range s.jobs {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	out := make([]*domain.IngestionJob, 0)
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.job.OwnerID == ownerID {
			out = append(out, entry.job.Clone())
		}
		entry.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *JobStore) entry(jobID string) (*jobEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return entry, nil
}
