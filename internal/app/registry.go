package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"quizlink-service/internal/domain"
)

// QuestionInput is one caller-supplied question; choice ids are assigned by
// the registry.
type QuestionInput struct {
	Prompt             string
	Choices            []string
	CorrectChoiceIndex int
}

// QuizInput carries the caller-supplied quiz fields for create and update.
type QuizInput struct {
	Title           string
	Description     string
	Questions       []QuestionInput
	DurationSeconds int
	Visibility      domain.Visibility
	AllowAnonymous  bool
}

// Registry owns quiz lifecycle and sharing: create, edit, share codes,
// grants.
type Registry struct {
	quizzes QuizStore
	grants  GrantStore
	baseURL string
	now     func() time.Time
}

func NewRegistry(quizzes QuizStore, grants GrantStore, baseURL string) *Registry {
	return NewRegistryWithClock(quizzes, grants, baseURL, time.Now)
}

// NewRegistryWithClock is test-only for deterministic timestamps.
func NewRegistryWithClock(quizzes QuizStore, grants GrantStore, baseURL string, now func() time.Time) *Registry {
	return &Registry{quizzes: quizzes, grants: grants, baseURL: strings.TrimRight(baseURL, "/"), now: now}
}

// Create validates and persists a new quiz, issuing its share code.
func (r *Registry) Create(ctx context.Context, ownerID string, input QuizInput) (*domain.Quiz, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	now := r.now()
	quiz := &domain.Quiz{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Source:    domain.ManualSource(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyQuizInput(quiz, input); err != nil {
		return nil, err
	}
	if err := persistWithShareCode(ctx, quiz, r.quizzes.Create); err != nil {
		return nil, err
	}
	return quiz, nil
}

// Get returns a quiz to any caller with view access.
func (r *Registry) Get(ctx context.Context, callerID, quizID string) (*domain.Quiz, error) {
	quiz, err := r.quizzes.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(ctx, r.grants, quiz, callerID); err != nil {
		return nil, err
	}
	return quiz, nil
}

// ResolveShareCode looks a quiz up by its share code. Anonymous callers may
// resolve public quizzes and private ones that allow anonymous access;
// otherwise a private quiz requires a grant.
func (r *Registry) ResolveShareCode(ctx context.Context, callerID, code string) (*domain.Quiz, error) {
	quizID, err := r.quizzes.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	quiz, err := r.quizzes.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if callerID == "" && quiz.AllowAnonymous {
		return quiz, nil
	}
	if err := authorizeView(ctx, r.grants, quiz, callerID); err != nil {
		return nil, err
	}
	return quiz, nil
}

// Update replaces the content of an owned quiz. The share code never
// changes, and running sessions keep the snapshot they started with.
func (r *Registry) Update(ctx context.Context, ownerID, quizID string, input QuizInput) (*domain.Quiz, error) {
	quiz, err := r.quizzes.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.OwnerID != ownerID || ownerID == "" {
		return nil, domain.ErrForbidden
	}
	if err := applyQuizInput(quiz, input); err != nil {
		return nil, err
	}
	quiz.UpdatedAt = r.now()
	if err := r.quizzes.Save(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// Delete removes an owned quiz. Sessions against it are retained as audit
// records and keep their snapshots.
func (r *Registry) Delete(ctx context.Context, ownerID, quizID string) error {
	quiz, err := r.quizzes.Get(ctx, quizID)
	if err != nil {
		return err
	}
	if quiz.OwnerID != ownerID || ownerID == "" {
		return domain.ErrForbidden
	}
	return r.quizzes.Delete(ctx, quizID)
}

// GrantShare gives the grantee view or attempt access. Re-granting replaces
// the existing permission.
func (r *Registry) GrantShare(ctx context.Context, callerID, quizID, granteeID string, permission domain.Permission) (*domain.ShareGrant, error) {
	quiz, err := r.quizzes.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.OwnerID != callerID || callerID == "" {
		return nil, domain.ErrForbidden
	}
	if quiz.Draft {
		return nil, domain.ErrQuizDraft
	}
	if !permission.Valid() {
		return nil, domain.Validationf("unknown permission %q", permission)
	}
	if granteeID == "" {
		return nil, domain.Validationf("grantee is required")
	}
	if granteeID == quiz.OwnerID {
		return nil, domain.Validationf("cannot share a quiz with its owner")
	}
	grant := &domain.ShareGrant{
		QuizID:     quizID,
		GranteeID:  granteeID,
		Permission: permission,
		GrantedBy:  callerID,
		CreatedAt:  r.now(),
	}
	if err := r.grants.Upsert(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

// RevokeShare removes the grantee's access.
func (r *Registry) RevokeShare(ctx context.Context, callerID, quizID, granteeID string) error {
	quiz, err := r.quizzes.Get(ctx, quizID)
	if err != nil {
		return err
	}
	if quiz.OwnerID != callerID || callerID == "" {
		return domain.ErrForbidden
	}
	return r.grants.Delete(ctx, quizID, granteeID)
}

// ListGrants returns the grants of an owned quiz.
func (r *Registry) ListGrants(ctx context.Context, callerID, quizID string) ([]*domain.ShareGrant, error) {
	quiz, err := r.quizzes.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.OwnerID != callerID || callerID == "" {
		return nil, domain.ErrForbidden
	}
	return r.grants.ListByQuiz(ctx, quizID)
}

// ListMine returns the caller's own quizzes, drafts included.
func (r *Registry) ListMine(ctx context.Context, callerID string) ([]*domain.Quiz, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return r.quizzes.ListByOwner(ctx, callerID)
}

// ListSharedWith returns the published quizzes shared with the caller.
// Grants whose quiz has since been deleted are skipped.
func (r *Registry) ListSharedWith(ctx context.Context, callerID string) ([]*domain.Quiz, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	grants, err := r.grants.ListByGrantee(ctx, callerID)
	if err != nil {
		return nil, err
	}
	quizzes := make([]*domain.Quiz, 0, len(grants))
	for _, grant := range grants {
		quiz, err := r.quizzes.Get(ctx, grant.QuizID)
		if errors.Is(err, domain.ErrQuizNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}

// ShareLink renders the join URL for a published quiz, or "" for drafts.
func (r *Registry) ShareLink(quiz *domain.Quiz) string {
	if quiz.ShareCode == "" {
		return ""
	}
	return r.baseURL + "/join/" + quiz.ShareCode
}

// applyQuizInput validates the input and writes it onto the quiz, assigning
// fresh question and choice ids.
func applyQuizInput(quiz *domain.Quiz, input QuizInput) error {
	questions, err := buildQuestions(input.Questions)
	if err != nil {
		return err
	}
	quiz.Title = input.Title
	quiz.Description = input.Description
	quiz.Questions = questions
	quiz.DurationSeconds = input.DurationSeconds
	quiz.Visibility = input.Visibility
	quiz.AllowAnonymous = input.AllowAnonymous
	if quiz.Draft {
		return nil
	}
	return quiz.Validate()
}

// buildQuestions turns caller-supplied questions into domain questions with
// server-assigned ids.
func buildQuestions(inputs []QuestionInput) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(inputs))
	for i, in := range inputs {
		if in.CorrectChoiceIndex < 0 || in.CorrectChoiceIndex >= len(in.Choices) {
			return nil, domain.Validationf("question %d: correct choice index out of range", i+1)
		}
		question := domain.Question{
			ID:      uuid.NewString(),
			Prompt:  in.Prompt,
			Choices: make([]domain.Choice, 0, len(in.Choices)),
		}
		for j, text := range in.Choices {
			choice := domain.Choice{ID: uuid.NewString(), Text: text}
			if j == in.CorrectChoiceIndex {
				question.CorrectChoiceID = choice.ID
			}
			question.Choices = append(question.Choices, choice)
		}
		questions = append(questions, question)
	}
	return questions, nil
}
