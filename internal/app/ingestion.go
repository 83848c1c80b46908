package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quizlink-service/internal/domain"
)

const (
	defaultExtractionWorkers = 4
	jobWriteTimeout          = 10 * time.Second
)

// ConfirmInput carries the fields the owner supplies when publishing an
// extracted draft.
type ConfirmInput struct {
	Title           string
	Description     string
	DurationSeconds int
	Visibility      domain.Visibility
	AllowAnonymous  bool
}

// IngestionPipeline turns uploaded quiz images into draft quizzes through
// the extraction collaborator. Extractions run on a bounded worker group;
// a failed or slow extraction marks the job failed and never surfaces to
// the submitter.
type IngestionPipeline struct {
	jobs      JobStore
	quizzes   QuizStore
	extractor Extractor
	events    EventPublisher
	group     *errgroup.Group
	timeout   time.Duration
	now       func() time.Time
}

func NewIngestionPipeline(jobs JobStore, quizzes QuizStore, extractor Extractor, events EventPublisher, workers int, timeout time.Duration) *IngestionPipeline {
	return NewIngestionPipelineWithClock(jobs, quizzes, extractor, events, workers, timeout, time.Now)
}

// NewIngestionPipelineWithClock is test-only for deterministic timestamps.
func NewIngestionPipelineWithClock(jobs JobStore, quizzes QuizStore, extractor Extractor, events EventPublisher, workers int, timeout time.Duration, now func() time.Time) *IngestionPipeline {
	if workers <= 0 {
		workers = defaultExtractionWorkers
	}
	group := new(errgroup.Group)
	group.SetLimit(workers)
	return &IngestionPipeline{
		jobs:      jobs,
		quizzes:   quizzes,
		extractor: extractor,
		events:    events,
		group:     group,
		timeout:   timeout,
		now:       now,
	}
}

// Submit queues an extraction for the image and returns the pending job.
func (p *IngestionPipeline) Submit(ctx context.Context, ownerID, imageRef string) (*domain.IngestionJob, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if imageRef == "" {
		return nil, domain.Validationf("image reference is required")
	}
	job := domain.NewIngestionJob(uuid.NewString(), ownerID, imageRef, p.now())
	if err := p.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	p.group.Go(func() error {
		p.process(job.ID, ownerID, imageRef)
		return nil
	})
	return job, nil
}

// Get returns the owner's job.
func (p *IngestionPipeline) Get(ctx context.Context, ownerID, jobID string) (*domain.IngestionJob, error) {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID || ownerID == "" {
		return nil, domain.ErrForbidden
	}
	return job, nil
}

// ListByOwner returns the caller's jobs, newest first.
func (p *IngestionPipeline) ListByOwner(ctx context.Context, ownerID string) ([]*domain.IngestionJob, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return p.jobs.ListByOwner(ctx, ownerID)
}

// Confirm publishes the draft quiz held by an extracted job, applying the
// owner's final fields and issuing the share code. The job's critical
// section serializes concurrent confirms of the same draft.
func (p *IngestionPipeline) Confirm(ctx context.Context, ownerID, jobID string, input ConfirmInput) (*domain.Quiz, error) {
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID || ownerID == "" {
		return nil, domain.ErrForbidden
	}
	var published *domain.Quiz
	_, err = p.jobs.Update(ctx, jobID, func(j *domain.IngestionJob) error {
		if j.State != domain.JobExtracted {
			return domain.ErrJobNotExtracted
		}
		quiz, err := p.quizzes.Get(ctx, j.QuizID)
		if err != nil {
			return err
		}
		if !quiz.Draft {
			return domain.ErrDraftPublished
		}
		quiz.Title = input.Title
		quiz.Description = input.Description
		quiz.DurationSeconds = input.DurationSeconds
		quiz.Visibility = input.Visibility
		quiz.AllowAnonymous = input.AllowAnonymous
		quiz.Draft = false
		quiz.UpdatedAt = p.now()
		if err := quiz.Validate(); err != nil {
			return err
		}
		if err := persistWithShareCode(ctx, quiz, p.quizzes.Save); err != nil {
			return err
		}
		published = quiz
		return nil
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}

// Wait blocks until every queued extraction has finished. Used on shutdown.
func (p *IngestionPipeline) Wait() {
	_ = p.group.Wait()
}

// process runs one extraction. It owns its contexts: the submitter's request
// context is long gone by the time the worker runs.
func (p *IngestionPipeline) process(jobID, ownerID, imageRef string) {
	extractCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
	raw, err := p.extractor.Extract(extractCtx, imageRef)
	cancel()

	// Result writes get a fresh context so an extraction timeout cannot
	// strand the job in pending.
	ctx, cancel := context.WithTimeout(context.Background(), jobWriteTimeout)
	defer cancel()

	if err != nil {
		p.finishJob(ctx, jobID, func(j *domain.IngestionJob, now time.Time) {
			j.MarkFailed(err.Error(), now)
		})
		return
	}
	usable := make([]QuestionInput, 0, len(raw))
	for _, q := range raw {
		if q.Usable() {
			usable = append(usable, QuestionInput{
				Prompt:             q.Prompt,
				Choices:            q.Choices,
				CorrectChoiceIndex: q.CorrectChoiceIndex,
			})
		}
	}
	if len(usable) == 0 {
		p.finishJob(ctx, jobID, func(j *domain.IngestionJob, now time.Time) {
			j.MarkFailed("no usable questions extracted", now)
		})
		return
	}
	questions, err := buildQuestions(usable)
	if err != nil {
		p.finishJob(ctx, jobID, func(j *domain.IngestionJob, now time.Time) {
			j.MarkFailed(err.Error(), now)
		})
		return
	}
	now := p.now()
	draft := &domain.Quiz{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Questions:  questions,
		Visibility: domain.VisibilityPrivate,
		Source:     domain.IngestionSource(jobID),
		Draft:      true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.quizzes.Create(ctx, draft); err != nil {
		p.finishJob(ctx, jobID, func(j *domain.IngestionJob, now time.Time) {
			j.MarkFailed("storing draft quiz failed", now)
		})
		return
	}
	p.finishJob(ctx, jobID, func(j *domain.IngestionJob, now time.Time) {
		j.MarkExtracted(draft.ID, now)
	})
}

func (p *IngestionPipeline) finishJob(ctx context.Context, jobID string, mark func(*domain.IngestionJob, time.Time)) {
	now := p.now()
	job, err := p.jobs.Update(ctx, jobID, func(j *domain.IngestionJob) error {
		mark(j, now)
		return nil
	})
	if err != nil {
		return
	}
	if p.events != nil {
		// Best effort: adapters report their own failures.
		_ = p.events.Publish(ctx, domain.IngestionFinishedEvent(job, now))
	}
}
