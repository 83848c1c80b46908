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

// SessionStore is a Postgres implementation of app.SessionStore. Update runs
// inside a transaction holding the row lock (SELECT ... FOR UPDATE), which is
// the per-session critical section the engine relies on; two sessions never
// contend because they lock different rows.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, taker_id, data) VALUES ($1, $2, $3)`,
		session.ID, session.TakerID, data)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM sessions WHERE id=$1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return unmarshalSession(raw)
}

// Update applies fn under the row lock and persists the session as fn left
// it, even when fn rejects the operation; fn's error is passed through with
// the updated snapshot.
func (s *SessionStore) Update(ctx context.Context, sessionID string, fn func(*domain.Session) error) (*domain.Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT data FROM sessions WHERE id=$1 FOR UPDATE`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	session, err := unmarshalSession(raw)
	if err != nil {
		return nil, err
	}

	fnErr := fn(session)

	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE sessions SET data=$2 WHERE id=$1`, sessionID, data); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return session, fnErr
}

func (s *SessionStore) ListByTaker(ctx context.Context, takerID string) ([]*domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM sessions WHERE taker_id=$1 ORDER BY data->>'startedAt' DESC`, takerID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Session, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		session, err := unmarshalSession(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func unmarshalSession(raw []byte) (*domain.Session, error) {
	session := &domain.Session{}
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}
