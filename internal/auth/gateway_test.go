package auth_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"quizlink-service/internal/auth"
	"quizlink-service/internal/domain"
)

// countingRefresher hands out a scripted pair and counts refresh calls.
type countingRefresher struct {
	mu    sync.Mutex
	calls int
	pair  domain.CredentialPair
	err   error
}

func (r *countingRefresher) Refresh(context.Context, string) (*domain.CredentialPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	pair := r.pair
	return &pair, nil
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// tokenServer accepts exactly one bearer token and records every token it saw.
func tokenServer(accept string) (*httptest.Server, func() []string) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		mu.Lock()
		seen = append(seen, token)
		mu.Unlock()
		if token != accept {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, "ok")
	}))
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := make([]string, len(seen))
		copy(out, seen)
		return out
	}
}

func validPair(access string, now time.Time) domain.CredentialPair {
	return domain.CredentialPair{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(time.Hour),
		RefreshToken:     "refresh-" + access,
		RefreshExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestGatewayRefreshesOn401AndRetriesOnce(t *testing.T) {
	now := time.Now()
	srv, _ := tokenServer("good")
	defer srv.Close()

	store := auth.NewTokenStore(nil)
	if err := store.Set(context.Background(), validPair("stale", now)); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	refresher := &countingRefresher{pair: validPair("good", now)}
	client := &http.Client{Transport: auth.NewGateway(nil, store, refresher)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after retry, got %d", resp.StatusCode)
	}
	if refresher.count() != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.count())
	}
	pair, ok := store.Get()
	if !ok || pair.AccessToken != "good" {
		t.Fatalf("expected refreshed pair in store, got %+v ok=%v", pair, ok)
	}
}

func TestGatewayConcurrent401sShareOneRefresh(t *testing.T) {
	now := time.Now()
	srv, _ := tokenServer("good")
	defer srv.Close()

	store := auth.NewTokenStore(nil)
	if err := store.Set(context.Background(), validPair("stale", now)); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	refresher := &countingRefresher{pair: validPair("good", now)}
	client := &http.Client{Transport: auth.NewGateway(nil, store, refresher)}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	statuses := make(chan int, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			resp, err := client.Get(srv.URL)
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)
	close(errs)

	for err := range errs {
		t.Fatalf("request failed: %v", err)
	}
	for status := range statuses {
		if status != http.StatusOK {
			t.Fatalf("expected every caller to succeed, got %d", status)
		}
	}
	if refresher.count() != 1 {
		t.Fatalf("expected a single shared refresh, got %d", refresher.count())
	}
}

func TestGatewayRefreshesExpiredPairBeforeSending(t *testing.T) {
	now := time.Now()
	srv, seen := tokenServer("good")
	defer srv.Close()

	store := auth.NewTokenStore(nil)
	expired := validPair("stale", now)
	expired.AccessExpiresAt = now.Add(-time.Minute)
	if err := store.Set(context.Background(), expired); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	refresher := &countingRefresher{pair: validPair("good", now)}
	client := &http.Client{Transport: auth.NewGateway(nil, store, refresher)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, token := range seen() {
		if token == "stale" {
			t.Fatalf("expired token must never reach the wire")
		}
	}
	if refresher.count() != 1 {
		t.Fatalf("expected one proactive refresh, got %d", refresher.count())
	}
}

func TestGatewayRefreshFailureFailsAllWaiters(t *testing.T) {
	now := time.Now()
	srv, _ := tokenServer("good")
	defer srv.Close()

	store := auth.NewTokenStore(nil)
	if err := store.Set(context.Background(), validPair("stale", now)); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	refresher := &countingRefresher{err: domain.ErrInvalidRefreshToken}
	client := &http.Client{Transport: auth.NewGateway(nil, store, refresher)}

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := client.Get(srv.URL)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("expected unauthenticated, got %v", err)
		}
	}
	if _, ok := store.Get(); ok {
		t.Fatalf("expected the store to be cleared after a failed refresh")
	}
}

func TestGatewayRetriesAtMostOncePerCall(t *testing.T) {
	now := time.Now()
	srv, seen := tokenServer("never-issued")
	defer srv.Close()

	store := auth.NewTokenStore(nil)
	if err := store.Set(context.Background(), validPair("stale", now)); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	// The refreshed token is also rejected; the second 401 must stand.
	refresher := &countingRefresher{pair: validPair("still-bad", now)}
	client := &http.Client{Transport: auth.NewGateway(nil, store, refresher)}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the second 401 to surface, got %d", resp.StatusCode)
	}
	if refresher.count() != 1 {
		t.Fatalf("expected exactly one refresh, got %d", refresher.count())
	}
	if got := len(seen()); got != 2 {
		t.Fatalf("expected exactly two wire attempts, got %d", got)
	}
}

func TestGatewayWithoutCredentials(t *testing.T) {
	store := auth.NewTokenStore(nil)
	client := &http.Client{Transport: auth.NewGateway(nil, store, &countingRefresher{})}
	if _, err := client.Get("http://127.0.0.1:0"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
