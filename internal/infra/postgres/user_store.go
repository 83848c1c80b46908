package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizlink-service/internal/domain"
)

// UserStore is a Postgres implementation of auth.UserStore. The secret hash
// lives in its own column rather than the JSONB document, since it must never
// travel with a serialized user.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, identity, secret_hash, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Identity, user.SecretHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrIdentityTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.get(ctx, `SELECT id, identity, secret_hash, created_at FROM users WHERE id=$1`, userID)
}

func (s *UserStore) GetByIdentity(ctx context.Context, identity string) (*domain.User, error) {
	return s.get(ctx, `SELECT id, identity, secret_hash, created_at FROM users WHERE identity=$1`, identity)
}

func (s *UserStore) get(ctx context.Context, query, arg string) (*domain.User, error) {
	user := &domain.User{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Identity, &user.SecretHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
