package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"quizlink-service/internal/domain"
)

// QuizRef identifies the quiz to attempt, by id or by share code.
type QuizRef struct {
	QuizID    string
	ShareCode string
}

// SessionEngine runs timed quiz attempts. The time limit is enforced lazily:
// every mutating call compares the clock against the snapshotted deadline, so
// no background scheduler is needed for correctness.
type SessionEngine struct {
	sessions SessionStore
	quizzes  QuizStore
	grants   GrantStore
	events   EventPublisher
	now      func() time.Time
}

func NewSessionEngine(sessions SessionStore, quizzes QuizStore, grants GrantStore, events EventPublisher) *SessionEngine {
	return NewSessionEngineWithClock(sessions, quizzes, grants, events, time.Now)
}

// NewSessionEngineWithClock is test-only for deterministic timestamps.
func NewSessionEngineWithClock(sessions SessionStore, quizzes QuizStore, grants GrantStore, events EventPublisher, now func() time.Time) *SessionEngine {
	return &SessionEngine{
		sessions: sessions,
		quizzes:  quizzes,
		grants:   grants,
		events:   events,
		now:      now,
	}
}

// Start begins an attempt for the taker, snapshotting the quiz's questions
// and duration into the new session. Multiple concurrent attempts by the same
// taker are permitted and independent.
func (e *SessionEngine) Start(ctx context.Context, takerID string, ref QuizRef) (*domain.Session, error) {
	quiz, err := e.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := authorizeAttempt(ctx, e.grants, quiz, takerID); err != nil {
		return nil, err
	}
	session := domain.NewSession(uuid.NewString(), *quiz, takerID, e.now())
	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SubmitAnswer records the taker's choice for one question. A rejected call
// still returns the session snapshot when the rejection depends on session
// state, so callers can report the transition it observed.
func (e *SessionEngine) SubmitAnswer(ctx context.Context, takerID, sessionID, questionID, choiceID string) (*domain.Session, error) {
	now := e.now()
	expired := false
	session, err := e.sessions.Update(ctx, sessionID, func(s *domain.Session) error {
		if s.TakerID != takerID {
			return domain.ErrForbidden
		}
		running := !s.Finished()
		submitErr := s.SubmitAnswer(questionID, choiceID, now)
		expired = running && s.Finished()
		return submitErr
	})
	if err != nil && (session == nil || errors.Is(err, domain.ErrForbidden)) {
		return nil, err
	}
	if expired {
		e.publishFinished(ctx, session, now)
	}
	return session, err
}

// Complete ends the attempt and computes its score. Past the deadline the
// session expires instead, scoring only the answers already present; a
// session that already expired reports its frozen score again.
func (e *SessionEngine) Complete(ctx context.Context, takerID, sessionID string) (*domain.Session, error) {
	now := e.now()
	finished := false
	session, err := e.sessions.Update(ctx, sessionID, func(s *domain.Session) error {
		if s.TakerID != takerID {
			return domain.ErrForbidden
		}
		running := !s.Finished()
		_, finErr := s.Finalize(now)
		finished = running && s.Finished()
		return finErr
	})
	if err != nil && (session == nil || errors.Is(err, domain.ErrForbidden)) {
		return nil, err
	}
	if finished {
		e.publishFinished(ctx, session, now)
	}
	return session, err
}

// Get returns the session to its taker or to the quiz's owner. Reads never
// advance the state machine; an overdue session stays in_progress until the
// next mutating call observes it.
func (e *SessionEngine) Get(ctx context.Context, callerID, sessionID string) (*domain.Session, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.TakerID != callerID {
		quiz, err := e.quizzes.Get(ctx, session.QuizID)
		if err != nil || quiz.OwnerID != callerID {
			return nil, domain.ErrForbidden
		}
	}
	return session, nil
}

// ListByTaker returns the caller's own sessions, newest first.
func (e *SessionEngine) ListByTaker(ctx context.Context, takerID string) ([]*domain.Session, error) {
	if takerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return e.sessions.ListByTaker(ctx, takerID)
}

// ExpireOverdue marks an overdue session expired and reports whether this
// call performed the transition. It exists purely as an optimization over
// lazy expiry and produces the same scoring outcome.
func (e *SessionEngine) ExpireOverdue(ctx context.Context, sessionID string) (bool, error) {
	now := e.now()
	transitioned := false
	session, err := e.sessions.Update(ctx, sessionID, func(s *domain.Session) error {
		transitioned = s.ExpireIfOverdue(now)
		return nil
	})
	if err != nil {
		return false, err
	}
	if transitioned {
		e.publishFinished(ctx, session, now)
	}
	return transitioned, nil
}

func (e *SessionEngine) resolveRef(ctx context.Context, ref QuizRef) (*domain.Quiz, error) {
	switch {
	case ref.QuizID != "":
		return e.quizzes.Get(ctx, ref.QuizID)
	case ref.ShareCode != "":
		quizID, err := e.quizzes.Resolve(ctx, ref.ShareCode)
		if err != nil {
			return nil, err
		}
		return e.quizzes.Get(ctx, quizID)
	default:
		return nil, domain.Validationf("quiz id or share code is required")
	}
}

func (e *SessionEngine) publishFinished(ctx context.Context, session *domain.Session, now time.Time) {
	if e.events == nil {
		return
	}
	// Best effort: adapters report their own failures.
	_ = e.events.Publish(ctx, domain.SessionFinishedEvent(session, now))
}
