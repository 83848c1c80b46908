package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quizlink-service/internal/domain"
)

func TestRefreshStoreTakeIsSingleUse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRefreshStore(newClient(mr))
	ctx := context.Background()

	record := &domain.RefreshRecord{
		TokenHash: "hash-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	taken, err := store.Take(ctx, "hash-1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if taken.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", taken.UserID)
	}

	if _, err := store.Take(ctx, "hash-1"); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token on second take, got %v", err)
	}
}

func TestRefreshStoreConcurrentTakeSingleWinner(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRefreshStore(newClient(mr))
	ctx := context.Background()

	if err := store.Save(ctx, &domain.RefreshRecord{
		TokenHash: "hash-race",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, "hash-race"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

func TestRefreshStoreKeyExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRefreshStore(newClient(mr))
	ctx := context.Background()

	if err := store.Save(ctx, &domain.RefreshRecord{
		TokenHash: "hash-ttl",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Minute),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Take(ctx, "hash-ttl"); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token after ttl, got %v", err)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
