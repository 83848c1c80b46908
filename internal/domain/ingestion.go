package domain

import "time"

// JobState is the lifecycle state of an ingestion job.
type JobState string

const (
	// JobPending jobs are queued or being extracted.
	JobPending JobState = "pending"
	// JobExtracted jobs produced a draft quiz awaiting confirmation.
	JobExtracted JobState = "extracted"
	// JobFailed jobs produced nothing usable.
	JobFailed JobState = "failed"
)

// IngestionJob tracks one image-to-quiz extraction. QuizID is set once a
// draft quiz exists; Error is set only on failure.
type IngestionJob struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId"`
	ImageRef   string     `json:"imageRef"`
	State      JobState   `json:"state"`
	QuizID     string     `json:"quizId,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// NewIngestionJob queues an extraction for the given image.
func NewIngestionJob(id, ownerID, imageRef string, now time.Time) *IngestionJob {
	return &IngestionJob{
		ID:        id,
		OwnerID:   ownerID,
		ImageRef:  imageRef,
		State:     JobPending,
		CreatedAt: now,
	}
}

// Terminal reports whether the job can still change state.
func (j *IngestionJob) Terminal() bool { return j.State != JobPending }

// MarkExtracted records the draft quiz produced by the extraction.
func (j *IngestionJob) MarkExtracted(quizID string, now time.Time) {
	j.State = JobExtracted
	j.QuizID = quizID
	at := now
	j.FinishedAt = &at
}

// MarkFailed records why the extraction produced nothing.
func (j *IngestionJob) MarkFailed(reason string, now time.Time) {
	j.State = JobFailed
	j.Error = reason
	at := now
	j.FinishedAt = &at
}

// Clone returns a copy of the job.
func (j *IngestionJob) Clone() *IngestionJob {
	out := *j
	if j.FinishedAt != nil {
		at := *j.FinishedAt
		out.FinishedAt = &at
	}
	return &out
}

// ExtractedQuestion is one raw question as returned by the extraction
// collaborator, before choice ids are assigned.
type ExtractedQuestion struct {
	Prompt             string   `json:"prompt"`
	Choices            []string `json:"choices"`
	CorrectChoiceIndex int      `json:"correctChoiceIndex"`
}

// Usable reports whether the raw question is well-formed enough to keep.
func (q ExtractedQuestion) Usable() bool {
	return q.Prompt != "" && q.CorrectChoiceIndex >= 0 && q.CorrectChoiceIndex < len(q.Choices)
}
