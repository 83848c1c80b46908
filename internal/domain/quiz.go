package domain

import "time"

// Visibility controls who may resolve a quiz without a share grant.
type Visibility string

const (
	// VisibilityPublic quizzes resolve for any caller, authenticated or not.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate quizzes resolve only for the owner and grantees.
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility value.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// SourceKind tags how a quiz came to exist.
type SourceKind string

const (
	// SourceManual marks quizzes authored directly by their owner.
	SourceManual SourceKind = "manual"
	// SourceIngestion marks quizzes extracted from an uploaded image.
	SourceIngestion SourceKind = "ingestion"
)

// QuizSource is the tagged origin of a quiz. JobID is set only for
// ingestion-derived quizzes.
type QuizSource struct {
	Kind  SourceKind `json:"kind"`
	JobID string     `json:"jobId,omitempty"`
}

// ManualSource tags a hand-authored quiz.
func ManualSource() QuizSource { return QuizSource{Kind: SourceManual} }

// IngestionSource tags a quiz extracted by the given job.
func IngestionSource(jobID string) QuizSource {
	return QuizSource{Kind: SourceIngestion, JobID: jobID}
}

// Choice is one selectable answer of a question.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is an MCQ question with exactly one correct choice.
type Question struct {
	ID              string   `json:"id"`
	Prompt          string   `json:"prompt"`
	Choices         []Choice `json:"choices"`
	CorrectChoiceID string   `json:"correctChoiceId"`
}

// HasChoice reports whether the question contains the given choice id.
func (q Question) HasChoice(choiceID string) bool {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the question.
func (q Question) Clone() Question {
	out := q
	out.Choices = make([]Choice, len(q.Choices))
	copy(out.Choices, q.Choices)
	return out
}

// Validate checks the question invariants: a prompt, a non-empty choice set,
// and a correct-choice reference that matches exactly one choice.
func (q Question) Validate() error {
	if q.Prompt == "" {
		return Validationf("question %s has no prompt", q.ID)
	}
	if len(q.Choices) == 0 {
		return Validationf("question %s has no choices", q.ID)
	}
	matches := 0
	seen := make(map[string]struct{}, len(q.Choices))
	for _, c := range q.Choices {
		if _, dup := seen[c.ID]; dup {
			return Validationf("question %s has duplicate choice id %s", q.ID, c.ID)
		}
		seen[c.ID] = struct{}{}
		if c.ID == q.CorrectChoiceID {
			matches++
		}
	}
	if matches != 1 {
		return Validationf("question %s must reference exactly one correct choice", q.ID)
	}
	return nil
}

// Quiz is a set of questions taken under a shared time limit.
//
// ShareCode is empty while the quiz is a draft; once issued it never changes.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	OwnerID         string     `json:"ownerId"`
	Questions       []Question `json:"questions"`
	DurationSeconds int        `json:"durationSeconds"`
	Visibility      Visibility `json:"visibility"`
	// AllowAnonymous lets unauthenticated callers resolve the share code of a
	// private quiz.
	AllowAnonymous bool       `json:"allowAnonymous,omitempty"`
	ShareCode      string     `json:"shareCode,omitempty"`
	Source         QuizSource `json:"source"`
	Draft          bool       `json:"draft,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy of the quiz.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		out.Questions[i] = question.Clone()
	}
	return out
}

// Question returns the question with the given id, or nil.
func (q *Quiz) Question(questionID string) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == questionID {
			return &q.Questions[i]
		}
	}
	return nil
}

// Validate checks the quiz invariants for publication: a title, a positive
// duration, and at least one valid question.
func (q Quiz) Validate() error {
	if q.Title == "" {
		return Validationf("quiz title is required")
	}
	if q.DurationSeconds <= 0 {
		return Validationf("quiz duration must be positive")
	}
	if !q.Visibility.Valid() {
		return Validationf("unknown visibility %q", q.Visibility)
	}
	if len(q.Questions) == 0 {
		return Validationf("quiz has no questions")
	}
	for _, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Permission is the capability level of a share grant.
type Permission string

const (
	// PermissionView allows resolving and reading the quiz.
	PermissionView Permission = "view"
	// PermissionAttempt allows taking the quiz; it implies view.
	PermissionAttempt Permission = "attempt"
)

// Valid reports whether p is a known permission value.
func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionAttempt
}

// AllowsAttempt reports whether the permission covers starting a session.
func (p Permission) AllowsAttempt() bool { return p == PermissionAttempt }

// ShareGrant gives one grantee access to one quiz. Re-granting upserts the
// permission; the owner can revoke at any time.
type ShareGrant struct {
	QuizID     string     `json:"quizId"`
	GranteeID  string     `json:"granteeId"`
	Permission Permission `json:"permission"`
	GrantedBy  string     `json:"grantedBy"`
	CreatedAt  time.Time  `json:"createdAt"`
}
