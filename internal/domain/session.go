package domain

import "time"

// SessionState is the lifecycle state of an attempt.
type SessionState string

const (
	// SessionInProgress accepts answers until completed or expired.
	SessionInProgress SessionState = "in_progress"
	// SessionCompleted is terminal: the taker finished within the time limit.
	SessionCompleted SessionState = "completed"
	// SessionExpired is terminal: the time limit ran out before completion.
	SessionExpired SessionState = "expired"
)

// Answer is the taker's current choice for one question. Resubmitting the
// same question overwrites ChoiceID in place, keeping the original position.
type Answer struct {
	QuestionID  string    `json:"questionId"`
	ChoiceID    string    `json:"choiceId"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Score counts correct answers over the snapshot's question total.
// Unanswered questions count against the total, never as errors.
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Percent returns the score as a percentage of the question total.
func (s Score) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total) * 100
}

// Session is one timed attempt at a quiz. Questions is a deep snapshot taken
// at start, so concurrent quiz edits never change a running attempt. Sessions
// are never deleted; terminal ones remain as audit records.
type Session struct {
	ID              string       `json:"id"`
	QuizID          string       `json:"quizId"`
	QuizTitle       string       `json:"quizTitle"`
	TakerID         string       `json:"takerId"`
	State           SessionState `json:"state"`
	StartedAt       time.Time    `json:"startedAt"`
	DurationSeconds int          `json:"durationSeconds"`
	Questions       []Question   `json:"questions"`
	Answers         []Answer     `json:"answers"`
	Score           *Score       `json:"score,omitempty"`
	FinishedAt      *time.Time   `json:"finishedAt,omitempty"`
}

// NewSession starts an attempt at the given quiz, snapshotting its questions
// and duration.
func NewSession(id string, quiz Quiz, takerID string, now time.Time) *Session {
	questions := make([]Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = q.Clone()
	}
	return &Session{
		ID:              id,
		QuizID:          quiz.ID,
		QuizTitle:       quiz.Title,
		TakerID:         takerID,
		State:           SessionInProgress,
		StartedAt:       now,
		DurationSeconds: quiz.DurationSeconds,
		Questions:       questions,
	}
}

// Duration returns the snapshotted time limit.
func (s *Session) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// Deadline returns the instant the time limit runs out.
func (s *Session) Deadline() time.Time { return s.StartedAt.Add(s.Duration()) }

// Overdue reports whether the time limit has run out at now. Elapsed time
// exactly equal to the limit is still within it.
func (s *Session) Overdue(now time.Time) bool {
	return now.Sub(s.StartedAt) > s.Duration()
}

// Finished reports whether the session is in a terminal state.
func (s *Session) Finished() bool { return s.State != SessionInProgress }

// SubmitAnswer records the taker's choice for one snapshot question,
// overwriting any earlier choice for it. Answers arriving past the deadline
// are rejected and trigger the expiry transition, so a late submission can
// never inflate the frozen score.
func (s *Session) SubmitAnswer(questionID, choiceID string, now time.Time) error {
	if s.Finished() {
		return ErrSessionFinished
	}
	if s.Overdue(now) {
		s.expire(now)
		return ErrSessionExpired
	}
	question := s.question(questionID)
	if question == nil {
		return ErrQuestionNotFound
	}
	if !question.HasChoice(choiceID) {
		return ErrChoiceNotFound
	}
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			s.Answers[i].ChoiceID = choiceID
			s.Answers[i].SubmittedAt = now
			return nil
		}
	}
	s.Answers = append(s.Answers, Answer{QuestionID: questionID, ChoiceID: choiceID, SubmittedAt: now})
	return nil
}

// Finalize ends the attempt and returns its score. Within the time limit it
// transitions to Completed; past the deadline it transitions to Expired and
// scores only the answers already present. Calling it on an Expired session
// reports the frozen score again; on a Completed one it fails.
func (s *Session) Finalize(now time.Time) (Score, error) {
	switch s.State {
	case SessionCompleted:
		return Score{}, ErrSessionCompleted
	case SessionExpired:
		return *s.Score, nil
	}
	if s.Overdue(now) {
		s.expire(now)
	} else {
		s.finish(SessionCompleted, now)
	}
	return *s.Score, nil
}

// ExpireIfOverdue applies the expiry transition when the deadline has passed
// and reports whether it did. Marking proactively never changes the scoring
// outcome of the lazy path.
func (s *Session) ExpireIfOverdue(now time.Time) bool {
	if s.Finished() || !s.Overdue(now) {
		return false
	}
	s.expire(now)
	return true
}

func (s *Session) expire(now time.Time) { s.finish(SessionExpired, now) }

func (s *Session) finish(state SessionState, now time.Time) {
	score := s.computeScore()
	s.State = state
	s.Score = &score
	at := now
	s.FinishedAt = &at
}

func (s *Session) computeScore() Score {
	correct := 0
	for _, a := range s.Answers {
		if q := s.question(a.QuestionID); q != nil && q.CorrectChoiceID == a.ChoiceID {
			correct++
		}
	}
	return Score{Correct: correct, Total: len(s.Questions)}
}

func (s *Session) question(questionID string) *Question {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return &s.Questions[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	out := *s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		out.Questions[i] = q.Clone()
	}
	out.Answers = make([]Answer, len(s.Answers))
	copy(out.Answers, s.Answers)
	if s.Score != nil {
		score := *s.Score
		out.Score = &score
	}
	if s.FinishedAt != nil {
		at := *s.FinishedAt
		out.FinishedAt = &at
	}
	return &out
}
