package http

import (
	"time"

	"quizlink-service/internal/domain"
)

// The view types below are the wire shapes of quiz and session records.
// Correct-choice ids never leave the server for anyone but the quiz owner;
// takers see prompts and choices only.

type choiceView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID              string       `json:"id"`
	Prompt          string       `json:"prompt"`
	Choices         []choiceView `json:"choices"`
	CorrectChoiceID string       `json:"correctChoiceId,omitempty"`
}

type quizView struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	OwnerID         string            `json:"ownerId"`
	Questions       []questionView    `json:"questions"`
	DurationSeconds int               `json:"durationSeconds"`
	Visibility      domain.Visibility `json:"visibility"`
	AllowAnonymous  bool              `json:"allowAnonymous,omitempty"`
	ShareCode       string            `json:"shareCode,omitempty"`
	ShareLink       string            `json:"shareLink,omitempty"`
	Source          domain.QuizSource `json:"source"`
	Draft           bool              `json:"draft,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

type scoreView struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

type sessionView struct {
	ID              string              `json:"id"`
	QuizID          string              `json:"quizId"`
	QuizTitle       string              `json:"quizTitle"`
	TakerID         string              `json:"takerId"`
	State           domain.SessionState `json:"state"`
	StartedAt       time.Time           `json:"startedAt"`
	DurationSeconds int                 `json:"durationSeconds"`
	Questions       []questionView      `json:"questions"`
	Answers         []domain.Answer     `json:"answers"`
	Score           *scoreView          `json:"score,omitempty"`
	FinishedAt      *time.Time          `json:"finishedAt,omitempty"`
}

func newQuestionViews(questions []domain.Question, revealCorrect bool) []questionView {
	out := make([]questionView, 0, len(questions))
	for _, q := range questions {
		view := questionView{ID: q.ID, Prompt: q.Prompt, Choices: make([]choiceView, 0, len(q.Choices))}
		for _, c := range q.Choices {
			view.Choices = append(view.Choices, choiceView{ID: c.ID, Text: c.Text})
		}
		if revealCorrect {
			view.CorrectChoiceID = q.CorrectChoiceID
		}
		out = append(out, view)
	}
	return out
}

func newQuizView(quiz *domain.Quiz, callerID, shareLink string) quizView {
	owner := callerID != "" && callerID == quiz.OwnerID
	view := quizView{
		ID:              quiz.ID,
		Title:           quiz.Title,
		Description:     quiz.Description,
		OwnerID:         quiz.OwnerID,
		Questions:       newQuestionViews(quiz.Questions, owner),
		DurationSeconds: quiz.DurationSeconds,
		Visibility:      quiz.Visibility,
		AllowAnonymous:  quiz.AllowAnonymous,
		Source:          quiz.Source,
		Draft:           quiz.Draft,
		CreatedAt:       quiz.CreatedAt,
		UpdatedAt:       quiz.UpdatedAt,
	}
	// The share link embeds the code, so both stay owner-only.
	if owner {
		view.ShareCode = quiz.ShareCode
		view.ShareLink = shareLink
	}
	return view
}

func newQuizViews(quizzes []*domain.Quiz, callerID string, link func(*domain.Quiz) string) []quizView {
	out := make([]quizView, 0, len(quizzes))
	for _, quiz := range quizzes {
		out = append(out, newQuizView(quiz, callerID, link(quiz)))
	}
	return out
}

func newScoreView(score *domain.Score) *scoreView {
	if score == nil {
		return nil
	}
	return &scoreView{Correct: score.Correct, Total: score.Total, Percent: score.Percent()}
}

// newSessionView renders a session. Correct ids stay hidden while the attempt
// runs and are revealed once it is terminal, so a finished taker can review.
func newSessionView(session *domain.Session) sessionView {
	answers := session.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return sessionView{
		ID:              session.ID,
		QuizID:          session.QuizID,
		QuizTitle:       session.QuizTitle,
		TakerID:         session.TakerID,
		State:           session.State,
		StartedAt:       session.StartedAt,
		DurationSeconds: session.DurationSeconds,
		Questions:       newQuestionViews(session.Questions, session.Finished()),
		Answers:         answers,
		Score:           newScoreView(session.Score),
		FinishedAt:      session.FinishedAt,
	}
}
