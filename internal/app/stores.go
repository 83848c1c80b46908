package app

import (
	"context"

	"quizlink-service/internal/domain"
)

// QuizStore abstracts how quizzes are persisted (in-memory, Postgres, etc).
// Share codes are unique across all quizzes; Create and Save report
// domain.ErrShareCodeTaken on a collision.
type QuizStore interface {
	Create(ctx context.Context, quiz *domain.Quiz) error
	Get(ctx context.Context, quizID string) (*domain.Quiz, error)
	Save(ctx context.Context, quiz *domain.Quiz) error
	Delete(ctx context.Context, quizID string) error
	// Resolve maps a share code to a quiz id. The mapping is immutable once
	// issued, so implementations may cache it.
	Resolve(ctx context.Context, shareCode string) (string, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Quiz, error)
}

// SessionStore abstracts how attempts are persisted.
//
// Update runs fn against the stored session inside the store's per-session
// critical section and persists the session as fn left it, even when fn
// returns an error; fn's error is passed through alongside the updated
// snapshot. This lets a rejected operation still record the state transition
// it observed.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Update(ctx context.Context, sessionID string, fn func(*domain.Session) error) (*domain.Session, error)
	ListByTaker(ctx context.Context, takerID string) ([]*domain.Session, error)
}

// GrantStore abstracts how share grants are persisted. Grants are keyed by
// (quiz, grantee); Upsert replaces the permission of an existing grant.
type GrantStore interface {
	Upsert(ctx context.Context, grant *domain.ShareGrant) error
	Get(ctx context.Context, quizID, granteeID string) (*domain.ShareGrant, error)
	Delete(ctx context.Context, quizID, granteeID string) error
	ListByQuiz(ctx context.Context, quizID string) ([]*domain.ShareGrant, error)
	ListByGrantee(ctx context.Context, granteeID string) ([]*domain.ShareGrant, error)
}

// JobStore abstracts how ingestion jobs are persisted. Update follows the
// same contract as SessionStore.Update.
type JobStore interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
	Get(ctx context.Context, jobID string) (*domain.IngestionJob, error)
	Update(ctx context.Context, jobID string, fn func(*domain.IngestionJob) error) (*domain.IngestionJob, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.IngestionJob, error)
}

// EventPublisher pushes domain events to the broker. Publishing is best
// effort; engines never fail an operation over a publish error.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Extractor turns an image reference into raw quiz questions.
type Extractor interface {
	Extract(ctx context.Context, imageRef string) ([]domain.ExtractedQuestion, error)
}
