package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"quizlink-service/internal/domain"
)

const (
	minSecretLength = 8
	refreshRawSize  = 32
)

// Authority owns the credential lifecycle: registration, login, refresh
// rotation, and access token verification. Refresh tokens are stored hashed
// and rotate on every use.
type Authority struct {
	users      UserStore
	refresh    RefreshStore
	tokens     *TokenManager
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthority(users UserStore, refresh RefreshStore, tokens *TokenManager, refreshTTL time.Duration) *Authority {
	return NewAuthorityWithClock(users, refresh, tokens, refreshTTL, time.Now)
}

// NewAuthorityWithClock is test-only for deterministic timestamps.
func NewAuthorityWithClock(users UserStore, refresh RefreshStore, tokens *TokenManager, refreshTTL time.Duration, now func() time.Time) *Authority {
	return &Authority{
		users:      users,
		refresh:    refresh,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		now:        now,
	}
}

// Register creates a new identity with a bcrypt-hashed secret.
func (a *Authority) Register(ctx context.Context, identity, secret string) (*domain.User, error) {
	if identity == "" {
		return nil, domain.Validationf("identity is required")
	}
	if len(secret) < minSecretLength {
		return nil, domain.Validationf("secret must be at least %d characters", minSecretLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:         uuid.NewString(),
		Identity:   identity,
		SecretHash: hash,
		CreatedAt:  a.now(),
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Issue authenticates the identity and returns a fresh credential pair.
// Unknown identities and wrong secrets report the same error.
func (a *Authority) Issue(ctx context.Context, identity, secret string) (*domain.CredentialPair, error) {
	user, err := a.users.GetByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(user.SecretHash, []byte(secret)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return a.issuePair(ctx, user)
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued. Unknown, already used, and expired tokens all report
// ErrInvalidRefreshToken; of concurrent calls with the same token, exactly
// one wins.
func (a *Authority) Refresh(ctx context.Context, refreshToken string) (*domain.CredentialPair, error) {
	record, err := a.refresh.Take(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if record.Expired(a.now()) {
		return nil, domain.ErrInvalidRefreshToken
	}
	user, err := a.users.Get(ctx, record.UserID)
	if err != nil {
		return nil, domain.ErrInvalidRefreshToken
	}
	return a.issuePair(ctx, user)
}

// Revoke consumes a refresh token so it can no longer rotate. Revoking an
// unknown token is a no-op.
func (a *Authority) Revoke(ctx context.Context, refreshToken string) error {
	_, err := a.refresh.Take(ctx, hashToken(refreshToken))
	if err != nil && !errors.Is(err, domain.ErrInvalidRefreshToken) {
		return err
	}
	return nil
}

// Verify validates an access token and returns its claims.
func (a *Authority) Verify(accessToken string) (*Claims, error) {
	return a.tokens.Verify(accessToken)
}

// Lookup resolves an identity to its user, for share grants.
func (a *Authority) Lookup(ctx context.Context, identity string) (*domain.User, error) {
	return a.users.GetByIdentity(ctx, identity)
}

func (a *Authority) issuePair(ctx context.Context, user *domain.User) (*domain.CredentialPair, error) {
	now := a.now()
	access, accessExpiresAt, err := a.tokens.SignAccess(user, now)
	if err != nil {
		return nil, err
	}
	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshExpiresAt := now.Add(a.refreshTTL)
	record := &domain.RefreshRecord{
		TokenHash: hashToken(refreshToken),
		UserID:    user.ID,
		ExpiresAt: refreshExpiresAt,
	}
	if err := a.refresh.Save(ctx, record); err != nil {
		return nil, err
	}
	return &domain.CredentialPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// newRefreshToken returns an unguessable opaque token.
func newRefreshToken() (string, error) {
	raw := make([]byte, refreshRawSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// hashToken is the storage key of a refresh token; the plaintext is never
// persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
