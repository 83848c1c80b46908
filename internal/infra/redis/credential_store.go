package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quizlink-service/internal/domain"
)

// CredentialStore persists a client's current credential pair in Redis, so a
// restarted client resumes its login instead of re-authenticating. One key
// per client id; the pair is cleared on logout.
type CredentialStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewCredentialStore(client *redis.Client, clientID string) *CredentialStore {
	return &CredentialStore{client: client, key: "auth:credentials:" + clientID, now: time.Now}
}

func (s *CredentialStore) Load(ctx context.Context) (*domain.CredentialPair, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pair := &domain.CredentialPair{}
	if err := json.Unmarshal(data, pair); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *CredentialStore) Store(ctx context.Context, pair *domain.CredentialPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	// The key lives only as long as the refresh token can still rotate.
	ttl := pair.RefreshExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Erase(ctx)
	}
	return s.client.Set(ctx, s.key, data, ttl).Err()
}

func (s *CredentialStore) Erase(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
