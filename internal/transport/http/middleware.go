package http

import (
	"context"
	"net/http"
	"strings"

	"quizlink-service/internal/auth"
	"quizlink-service/internal/domain"
)

// TokenVerifier validates an access token and returns its claims.
type TokenVerifier interface {
	Verify(accessToken string) (*auth.Claims, error)
}

type contextKey struct{}

var userIDKey contextKey

// callerID returns the authenticated user id, or "" for anonymous requests.
func callerID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// bearerToken extracts the access token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// requireAuth rejects requests without a valid access token.
func requireAuth(verifier TokenVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, claims.UserID())))
	}
}

// optionalAuth attaches the caller's identity when a valid token is present
// and lets anonymous requests through; a token that fails verification is
// still rejected rather than silently downgraded.
func optionalAuth(verifier TokenVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next(w, r)
			return
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, claims.UserID())))
	}
}
