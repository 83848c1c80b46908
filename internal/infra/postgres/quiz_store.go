// Package postgres persists the service's records as JSONB rows, one table
// per aggregate. Indexed columns (owner, taker, share code) are lifted out of
// the document so listings and the unique share-code constraint stay in SQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizlink-service/internal/domain"
)

// pgUniqueViolation is the Postgres error code for a unique constraint hit.
const pgUniqueViolation = "23505"

// QuizStore is a Postgres implementation of app.QuizStore.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) Create(ctx context.Context, quiz *domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, owner_id, share_code, data) VALUES ($1, $2, $3, $4)`,
		quiz.ID, quiz.OwnerID, shareCodeValue(quiz.ShareCode), data)
	if isUniqueViolation(err) {
		return domain.ErrShareCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *QuizStore) Get(ctx context.Context, quizID string) (*domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	quiz := &domain.Quiz{}
	if err := json.Unmarshal(raw, quiz); err != nil {
		return nil, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizStore) Save(ctx context.Context, quiz *domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET owner_id=$2, share_code=$3, data=$4 WHERE id=$1`,
		quiz.ID, quiz.OwnerID, shareCodeValue(quiz.ShareCode), data)
	if isUniqueViolation(err) {
		return domain.ErrShareCodeTaken
	}
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) Delete(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) Resolve(ctx context.Context, shareCode string) (string, error) {
	var quizID string
	err := s.pool.QueryRow(ctx, `SELECT id FROM quizzes WHERE share_code=$1`, shareCode).Scan(&quizID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrShareCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve share code: %w", err)
	}
	return quizID, nil
}

func (s *QuizStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Quiz, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM quizzes WHERE owner_id=$1 ORDER BY data->>'createdAt' DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Quiz, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		quiz := &domain.Quiz{}
		if err := json.Unmarshal(raw, quiz); err != nil {
			return nil, fmt.Errorf("unmarshal quiz: %w", err)
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

// shareCodeValue maps a draft's empty code to NULL so the unique constraint
// only binds issued codes.
func shareCodeValue(code string) sql.NullString {
	return sql.NullString{String: code, Valid: code != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
