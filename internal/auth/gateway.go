package auth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"quizlink-service/internal/domain"
)

// Gateway is an http.RoundTripper that injects the bearer token and keeps it
// fresh. A pair that is already expired is refreshed before the request goes
// out, so an access token is never sent past its expiry. When the upstream
// answers 401 anyway, concurrent requests share a single refresh keyed by
// the access token that failed, then each retries exactly once with the
// refreshed token. A failed refresh clears the store and reports
// Unauthenticated to every waiter.
type Gateway struct {
	base      http.RoundTripper
	store     *TokenStore
	refresher Refresher
	sf        singleflight.Group
	now       func() time.Time
}

func NewGateway(base http.RoundTripper, store *TokenStore, refresher Refresher) *Gateway {
	return NewGatewayWithClock(base, store, refresher, time.Now)
}

// NewGatewayWithClock is test-only for deterministic timestamps.
func NewGatewayWithClock(base http.RoundTripper, store *TokenStore, refresher Refresher, now func() time.Time) *Gateway {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Gateway{base: base, store: store, refresher: refresher, now: now}
}

func (g *Gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	pair, ok := g.store.Get()
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	if pair.AccessExpired(g.now()) {
		refreshed, err := g.refreshPair(req.Context(), pair.AccessToken)
		if err != nil {
			return nil, err
		}
		pair = refreshed
	}
	resp, err := g.send(req, pair.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// The body is gone; the 401 stands.
		return resp, nil
	}
	resp.Body.Close()
	refreshed, err := g.refreshPair(req.Context(), pair.AccessToken)
	if err != nil {
		return nil, err
	}
	return g.send(req, refreshed.AccessToken)
}

func (g *Gateway) send(req *http.Request, accessToken string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	clone.Header.Set("Authorization", "Bearer "+accessToken)
	return g.base.RoundTrip(clone)
}

// refreshPair runs at most one refresh per failed access token. Callers that
// arrive after the winner already stored a fresh pair reuse it without a
// second refresh.
func (g *Gateway) refreshPair(ctx context.Context, failedAccessToken string) (domain.CredentialPair, error) {
	v, err, _ := g.sf.Do(failedAccessToken, func() (interface{}, error) {
		current, ok := g.store.Get()
		if !ok {
			return nil, domain.ErrUnauthenticated
		}
		if current.AccessToken != failedAccessToken && !current.AccessExpired(g.now()) {
			return current, nil
		}
		refreshed, err := g.refresher.Refresh(ctx, current.RefreshToken)
		if err != nil {
			_ = g.store.Clear(ctx)
			return nil, domain.ErrUnauthenticated
		}
		if err := g.store.Set(ctx, *refreshed); err != nil {
			return nil, err
		}
		return *refreshed, nil
	})
	if err != nil {
		return domain.CredentialPair{}, err
	}
	return v.(domain.CredentialPair), nil
}
