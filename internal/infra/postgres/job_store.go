package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizlink-service/internal/domain"
)

// JobStore is a Postgres implementation of app.JobStore. Update holds the row
// lock like SessionStore.Update, serializing a confirm racing the extraction
// worker's result write.
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

func (s *JobStore) Create(ctx context.Context, job *domain.IngestionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ingestion_jobs (id, owner_id, data) VALUES ($1, $2, $3)`,
		job.ID, job.OwnerID, data)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.IngestionJob, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM ingestion_jobs WHERE id=$1`, jobID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	return unmarshalJob(raw)
}

func (s *JobStore) Update(ctx context.Context, jobID string, fn func(*domain.IngestionJob) error) (*domain.IngestionJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT data FROM ingestion_jobs WHERE id=$1 FOR UPDATE`, jobID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock job: %w", err)
	}
	job, err := unmarshalJob(raw)
	if err != nil {
		return nil, err
	}

	fnErr := fn(job)

	data, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE ingestion_jobs SET data=$2 WHERE id=$1`, jobID, data); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return job, fnErr
}

func (s *JobStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.IngestionJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM ingestion_jobs WHERE owner_id=$1 ORDER BY data->>'createdAt' DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.IngestionJob, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		job, err := unmarshalJob(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func unmarshalJob(raw []byte) (*domain.IngestionJob, error) {
	job := &domain.IngestionJob{}
	if err := json.Unmarshal(raw, job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}
