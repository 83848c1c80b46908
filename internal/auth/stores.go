package auth

import (
	"context"

	"quizlink-service/internal/domain"
)

// UserStore abstracts how registered identities are persisted.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByIdentity(ctx context.Context, identity string) (*domain.User, error)
}

// RefreshStore abstracts how outstanding refresh tokens are persisted, keyed
// by token hash.
//
// Take removes and returns the record in one step, so concurrent rotations
// of the same token produce exactly one winner.
type RefreshStore interface {
	Save(ctx context.Context, record *domain.RefreshRecord) error
	Take(ctx context.Context, tokenHash string) (*domain.RefreshRecord, error)
}

// CredentialPersistence abstracts where a client keeps its credential pair
// between runs. Load returns nil without error when nothing is stored.
type CredentialPersistence interface {
	Load(ctx context.Context) (*domain.CredentialPair, error)
	Store(ctx context.Context, pair *domain.CredentialPair) error
	Erase(ctx context.Context) error
}

// Refresher exchanges a refresh token for a fresh credential pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.CredentialPair, error)
}
