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

// GrantStore is a Postgres implementation of app.GrantStore.
type GrantStore struct {
	pool *pgxpool.Pool
}

func NewGrantStore(pool *pgxpool.Pool) *GrantStore {
	return &GrantStore{pool: pool}
}

func (s *GrantStore) Upsert(ctx context.Context, grant *domain.ShareGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO share_grants (quiz_id, grantee_id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (quiz_id, grantee_id) DO UPDATE SET data=EXCLUDED.data`,
		grant.QuizID, grant.GranteeID, data)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (s *GrantStore) Get(ctx context.Context, quizID, granteeID string) (*domain.ShareGrant, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM share_grants WHERE quiz_id=$1 AND grantee_id=$2`,
		quizID, granteeID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load grant: %w", err)
	}
	return unmarshalGrant(raw)
}

func (s *GrantStore) Delete(ctx context.Context, quizID, granteeID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM share_grants WHERE quiz_id=$1 AND grantee_id=$2`, quizID, granteeID)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGrantNotFound
	}
	return nil
}

func (s *GrantStore) ListByQuiz(ctx context.Context, quizID string) ([]*domain.ShareGrant, error) {
	return s.list(ctx, `SELECT data FROM share_grants WHERE quiz_id=$1`, quizID)
}

func (s *GrantStore) ListByGrantee(ctx context.Context, granteeID string) ([]*domain.ShareGrant, error) {
	return s.list(ctx, `SELECT data FROM share_grants WHERE grantee_id=$1`, granteeID)
}

func (s *GrantStore) list(ctx context.Context, query, arg string) ([]*domain.ShareGrant, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.ShareGrant, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		grant, err := unmarshalGrant(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, grant)
	}
	return out, rows.Err()
}

func unmarshalGrant(raw []byte) (*domain.ShareGrant, error) {
	grant := &domain.ShareGrant{}
	if err := json.Unmarshal(raw, grant); err != nil {
		return nil, fmt.Errorf("unmarshal grant: %w", err)
	}
	return grant, nil
}
