package redis

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizlink-service/internal/app"
)

// ShareCodeCache wraps a QuizStore and caches share-code resolution in Redis.
// A code maps to the same quiz id forever once issued, so the cache only has
// to bound staleness after a quiz deletion; the TTL carries 10% jitter to
// spread expiry. Misses collapse through singleflight so a hot join link
// cannot stampede the backing store.
type ShareCodeCache struct {
	app.QuizStore
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewShareCodeCache(client *redis.Client, inner app.QuizStore, ttl time.Duration) *ShareCodeCache {
	return &ShareCodeCache{
		QuizStore: inner,
		client:    client,
		ttl:       ttl,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ShareCodeCache) Resolve(ctx context.Context, shareCode string) (string, error) {
	key := c.key(shareCode)
	quizID, err := c.client.Get(ctx, key).Result()
	if err == nil && quizID != "" {
		return quizID, nil
	}

	result, err, _ := c.sf.Do(shareCode, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		quizID, err := c.client.Get(ctx, key).Result()
		if err == nil && quizID != "" {
			return quizID, nil
		}

		quizID, err = c.QuizStore.Resolve(ctx, shareCode)
		if err != nil {
			return "", err
		}
		_ = c.client.Set(ctx, key, quizID, c.ttlWithJitter()).Err()
		return quizID, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Delete drops the quiz and evicts its cached share code, so a reissued code
// never resolves to a deleted quiz for a full TTL.
func (c *ShareCodeCache) Delete(ctx context.Context, quizID string) error {
	quiz, err := c.QuizStore.Get(ctx, quizID)
	if err != nil {
		return err
	}
	if err := c.QuizStore.Delete(ctx, quizID); err != nil {
		return err
	}
	if quiz.ShareCode != "" {
		if err := c.client.Del(ctx, c.key(quiz.ShareCode)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
	}
	return nil
}

func (c *ShareCodeCache) key(shareCode string) string {
	return "quiz:code:" + shareCode
}

func (c *ShareCodeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
