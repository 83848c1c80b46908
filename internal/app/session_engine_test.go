package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quizlink-service/internal/app"
	"quizlink-service/internal/domain"
	"quizlink-service/internal/infra/memory"
)

var testStart = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type engineFixture struct {
	engine   *app.SessionEngine
	quizzes  *memory.QuizStore
	grants   *memory.GrantStore
	sessions *memory.SessionStore
	events   *memory.EventLog
	now      time.Time
}

func (f *engineFixture) clock() time.Time { return f.now }

func (f *engineFixture) at(offset time.Duration) {
	f.now = testStart.Add(offset)
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		quizzes:  memory.NewQuizStore(),
		grants:   memory.NewGrantStore(),
		sessions: memory.NewSessionStore(),
		events:   memory.NewEventLog(),
		now:      testStart,
	}
	f.engine = app.NewSessionEngineWithClock(f.sessions, f.quizzes, f.grants, f.events, f.clock)
	if err := f.quizzes.Create(context.Background(), twoQuestionQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	return f
}

// twoQuestionQuiz has q1 (c2 correct) and q2 (c3 correct), 60s limit.
func twoQuestionQuiz() *domain.Quiz {
	return &domain.Quiz{
		ID:      "quiz-1",
		Title:   "Capitals",
		OwnerID: "owner-1",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "Capital of France?",
				Choices: []domain.Choice{
					{ID: "c1", Text: "Lyon"},
					{ID: "c2", Text: "Paris"},
				},
				CorrectChoiceID: "c2",
			},
			{
				ID:     "q2",
				Prompt: "Capital of Japan?",
				Choices: []domain.Choice{
					{ID: "c3", Text: "Tokyo"},
					{ID: "c4", Text: "Kyoto"},
				},
				CorrectChoiceID: "c3",
			},
		},
		DurationSeconds: 60,
		Visibility:      domain.VisibilityPublic,
		ShareCode:       "code1234",
		Source:          domain.ManualSource(),
		CreatedAt:       testStart,
		UpdatedAt:       testStart,
	}
}

func TestStartSnapshotsQuiz(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if session.State != domain.SessionInProgress {
		t.Fatalf("expected in_progress, got %s", session.State)
	}
	if len(session.Questions) != 2 || session.DurationSeconds != 60 {
		t.Fatalf("snapshot incomplete: %+v", session)
	}

	// Editing the quiz must not touch the running snapshot.
	quiz, _ := f.quizzes.Get(ctx, "quiz-1")
	quiz.Questions = quiz.Questions[:1]
	if err := f.quizzes.Save(ctx, quiz); err != nil {
		t.Fatalf("save quiz: %v", err)
	}
	got, err := f.engine.Get(ctx, "taker-1", session.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("snapshot changed after quiz edit: %d questions", len(got.Questions))
	}
}

func TestStartByShareCode(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{ShareCode: "code1234"})
	if err != nil {
		t.Fatalf("start by code failed: %v", err)
	}
	if session.QuizID != "quiz-1" {
		t.Fatalf("resolved wrong quiz %s", session.QuizID)
	}

	if _, err := f.engine.Start(ctx, "taker-1", app.QuizRef{ShareCode: "missing1"}); !errors.Is(err, domain.ErrShareCodeNotFound) {
		t.Fatalf("expected share code not found, got %v", err)
	}
	if _, err := f.engine.Start(ctx, "taker-1", app.QuizRef{}); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for empty ref, got %v", err)
	}
}

func TestStartPermissions(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	private := twoQuestionQuiz()
	private.ID = "quiz-2"
	private.ShareCode = "priv5678"
	private.Visibility = domain.VisibilityPrivate
	if err := f.quizzes.Create(ctx, private); err != nil {
		t.Fatalf("seed private quiz: %v", err)
	}
	f.grants.Upsert(ctx, &domain.ShareGrant{QuizID: "quiz-2", GranteeID: "viewer", Permission: domain.PermissionView})
	f.grants.Upsert(ctx, &domain.ShareGrant{QuizID: "quiz-2", GranteeID: "attempter", Permission: domain.PermissionAttempt})

	if _, err := f.engine.Start(ctx, "", app.QuizRef{QuizID: "quiz-1"}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := f.engine.Start(ctx, "stranger", app.QuizRef{QuizID: "quiz-2"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}
	if _, err := f.engine.Start(ctx, "viewer", app.QuizRef{QuizID: "quiz-2"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for view-only grant, got %v", err)
	}
	if _, err := f.engine.Start(ctx, "attempter", app.QuizRef{QuizID: "quiz-2"}); err != nil {
		t.Fatalf("attempt grant should allow start: %v", err)
	}
	if _, err := f.engine.Start(ctx, "owner-1", app.QuizRef{QuizID: "quiz-2"}); err != nil {
		t.Fatalf("owner should always start: %v", err)
	}
}

func TestSubmitOverwritesAnswer(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	f.at(5 * time.Second)
	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q1", "c1"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	f.at(10 * time.Second)
	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q2", "c3"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	// Last write wins for q1, keeping its original position.
	f.at(15 * time.Second)
	updated, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q1", "c2")
	if err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if len(updated.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(updated.Answers))
	}
	if updated.Answers[0].QuestionID != "q1" || updated.Answers[0].ChoiceID != "c2" {
		t.Fatalf("expected q1 overwritten in place, got %+v", updated.Answers)
	}

	f.at(20 * time.Second)
	done, err := f.engine.Complete(ctx, "taker-1", session.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.State != domain.SessionCompleted {
		t.Fatalf("expected completed, got %s", done.State)
	}
	if done.Score == nil || done.Score.Correct != 2 || done.Score.Total != 2 {
		t.Fatalf("expected 2/2, got %+v", done.Score)
	}
}

func TestLateAnswerRejectedAndScoresFreeze(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	f.at(10 * time.Second)
	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q1", "c2"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// 10s past the 60s limit: rejected, and the session expires as a side
	// effect with the score frozen at one answered question.
	f.at(70 * time.Second)
	late, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q2", "c4")
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if late == nil || late.State != domain.SessionExpired {
		t.Fatalf("expected expired state, got %+v", late)
	}
	if late.Score == nil || late.Score.Correct != 1 || late.Score.Total != 2 {
		t.Fatalf("expected frozen 1/2, got %+v", late.Score)
	}

	f.at(71 * time.Second)
	done, err := f.engine.Complete(ctx, "taker-1", session.ID)
	if err != nil {
		t.Fatalf("complete after expiry should report the frozen score: %v", err)
	}
	if done.Score.Correct != 1 || done.Score.Total != 2 || done.State != domain.SessionExpired {
		t.Fatalf("expected 1/2 expired, got %+v", done)
	}
}

func TestCompleteAfterDeadlineExpires(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.at(10 * time.Second)
	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q1", "c2"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	f.at(90 * time.Second)
	done, err := f.engine.Complete(ctx, "taker-1", session.ID)
	if err != nil {
		t.Fatalf("late complete failed: %v", err)
	}
	if done.State != domain.SessionExpired {
		t.Fatalf("expected expired, got %s", done.State)
	}
	if done.Score.Correct != 1 || done.Score.Total != 2 {
		t.Fatalf("expected 1/2, got %+v", done.Score)
	}
}

func TestDeadlineBoundary(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Elapsed time exactly equal to the limit is still within it.
	f.at(60 * time.Second)
	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q1", "c2"); err != nil {
		t.Fatalf("submit at the boundary should be accepted: %v", err)
	}
	f.now = f.now.Add(time.Nanosecond)
	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q2", "c3"); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected expired just past the boundary, got %v", err)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.at(10 * time.Second)
	if _, err := f.engine.Complete(ctx, "taker-1", session.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q1", "c2"); !errors.Is(err, domain.ErrSessionFinished) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if _, err := f.engine.Complete(ctx, "taker-1", session.ID); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected invalid state on double complete, got %v", err)
	}
}

func TestSubmitUnknownQuestionOrChoice(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q9", "c2"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	// c3 exists, but on q2.
	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q1", "c3"); !errors.Is(err, domain.ErrChoiceNotFound) {
		t.Fatalf("expected choice not found, got %v", err)
	}
	got, err := f.engine.Get(ctx, "taker-1", session.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Answers) != 0 {
		t.Fatalf("rejected submissions must not persist answers: %+v", got.Answers)
	}
}

func TestSubmitByOtherTakerForbidden(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	snapshot, err := f.engine.SubmitAnswer(ctx, "taker-2", session.ID, "q1", "c2")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if snapshot != nil {
		t.Fatalf("forbidden callers must not see session state")
	}
}

func TestGetAllowsTakerAndQuizOwner(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := f.engine.Get(ctx, "taker-1", session.ID); err != nil {
		t.Fatalf("taker get failed: %v", err)
	}
	if _, err := f.engine.Get(ctx, "owner-1", session.ID); err != nil {
		t.Fatalf("quiz owner get failed: %v", err)
	}
	if _, err := f.engine.Get(ctx, "stranger", session.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.engine.Get(ctx, "taker-1", "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListByTaker(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	first, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.at(5 * time.Second)
	second, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if _, err := f.engine.Start(ctx, "taker-2", app.QuizRef{QuizID: "quiz-1"}); err != nil {
		t.Fatalf("other taker start failed: %v", err)
	}

	sessions, err := f.engine.ListByTaker(ctx, "taker-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != second.ID || sessions[1].ID != first.ID {
		t.Fatalf("expected newest first, got %s then %s", sessions[0].ID, sessions[1].ID)
	}
}

func TestExpireOverdueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.at(10 * time.Second)
	if _, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, "q1", "c2"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	f.at(30 * time.Second)
	if expired, err := f.engine.ExpireOverdue(ctx, session.ID); err != nil || expired {
		t.Fatalf("session within time must not expire, got %v %v", expired, err)
	}

	f.at(61 * time.Second)
	expired, err := f.engine.ExpireOverdue(ctx, session.ID)
	if err != nil || !expired {
		t.Fatalf("expected expiry, got %v %v", expired, err)
	}
	if expired, err := f.engine.ExpireOverdue(ctx, session.ID); err != nil || expired {
		t.Fatalf("second call must be a no-op, got %v %v", expired, err)
	}

	got, err := f.engine.Get(ctx, "taker-1", session.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.State != domain.SessionExpired || got.Score.Correct != 1 {
		t.Fatalf("proactive expiry must score like lazy expiry, got %+v", got)
	}
}

func TestTerminalTransitionsPublishOneEvent(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	f.at(10 * time.Second)
	if _, err := f.engine.Complete(ctx, "taker-1", session.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := f.engine.Complete(ctx, "taker-1", session.ID); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	events := f.events.Events()
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != domain.EventSessionCompleted || ev.SessionID != session.ID || ev.State != string(domain.SessionCompleted) {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Score == nil || ev.Score.Total != 2 {
		t.Fatalf("event must carry the score, got %+v", ev.Score)
	}
}

func TestConcurrentSubmitsAreSerialized(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	big := twoQuestionQuiz()
	big.ID = "quiz-big"
	big.ShareCode = "big12345"
	big.Questions = nil
	for i := 0; i < 8; i++ {
		correct := fmt.Sprintf("q%d-right", i)
		big.Questions = append(big.Questions, domain.Question{
			ID:     fmt.Sprintf("q%d", i),
			Prompt: fmt.Sprintf("question %d", i),
			Choices: []domain.Choice{
				{ID: correct, Text: "right"},
				{ID: fmt.Sprintf("q%d-wrong", i), Text: "wrong"},
			},
			CorrectChoiceID: correct,
		})
	}
	if err := f.quizzes.Create(ctx, big); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	session, err := f.engine.Start(ctx, "taker-1", app.QuizRef{QuizID: "quiz-big"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(len(big.Questions))
	errs := make(chan error, len(big.Questions))
	for i := range big.Questions {
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.SubmitAnswer(ctx, "taker-1", session.ID, fmt.Sprintf("q%d", i), fmt.Sprintf("q%d-right", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent submit failed: %v", err)
		}
	}

	done, err := f.engine.Complete(ctx, "taker-1", session.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.Score.Correct != 8 || done.Score.Total != 8 {
		t.Fatalf("lost an update under concurrency: %+v", done.Score)
	}
}
