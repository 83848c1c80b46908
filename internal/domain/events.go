package domain

import "time"

// EventType names a domain event on the broker.
type EventType string

const (
	// EventSessionCompleted fires on every terminal session transition,
	// completed and expired alike; State carries which one.
	EventSessionCompleted EventType = "session.completed"
	// EventIngestionExtracted fires when a job produced a draft quiz.
	EventIngestionExtracted EventType = "ingestion.extracted"
	// EventIngestionFailed fires when a job produced nothing usable.
	EventIngestionFailed EventType = "ingestion.failed"
)

// Event is the envelope published for every domain event.
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"sessionId,omitempty"`
	QuizID     string    `json:"quizId,omitempty"`
	JobID      string    `json:"jobId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	State      string    `json:"state,omitempty"`
	Score      *Score    `json:"score,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// SessionFinishedEvent builds the event for a terminal session transition.
func SessionFinishedEvent(s *Session, now time.Time) Event {
	e := Event{
		Type:       EventSessionCompleted,
		SessionID:  s.ID,
		QuizID:     s.QuizID,
		UserID:     s.TakerID,
		State:      string(s.State),
		OccurredAt: now,
	}
	if s.Score != nil {
		score := *s.Score
		e.Score = &score
	}
	return e
}

// IngestionFinishedEvent builds the event for a terminal job transition.
func IngestionFinishedEvent(j *IngestionJob, now time.Time) Event {
	e := Event{
		JobID:      j.ID,
		QuizID:     j.QuizID,
		UserID:     j.OwnerID,
		State:      string(j.State),
		OccurredAt: now,
	}
	switch j.State {
	case JobFailed:
		e.Type = EventIngestionFailed
		e.Error = j.Error
	default:
		e.Type = EventIngestionExtracted
	}
	return e
}
