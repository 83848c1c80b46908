package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quizlink-service/internal/domain"
)

// RefreshStore keeps outstanding refresh tokens in Redis, keyed by token
// hash. Records carry their own expiry, so the key's TTL matches the token's
// lifetime and expired tokens vanish on their own.
type RefreshStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{client: client, now: time.Now}
}

func (s *RefreshStore) Save(ctx context.Context, record *domain.RefreshRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ttl := record.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return domain.ErrInvalidRefreshToken
	}
	return s.client.Set(ctx, s.key(record.TokenHash), data, ttl).Err()
}

// Take removes and returns the record in one round trip (GETDEL), so
// concurrent rotations of the same token produce exactly one winner.
func (s *RefreshStore) Take(ctx context.Context, tokenHash string) (*domain.RefreshRecord, error) {
	data, err := s.client.GetDel(ctx, s.key(tokenHash)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	record := &domain.RefreshRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, domain.ErrInvalidRefreshToken
	}
	return record, nil
}

func (s *RefreshStore) key(tokenHash string) string {
	return "auth:refresh:" + tokenHash
}
