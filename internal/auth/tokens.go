package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quizlink-service/internal/domain"
)

// Claims are the verified contents of an access token. UserID is the JWT
// subject.
type Claims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// UserID returns the subject the token was issued for.
func (c *Claims) UserID() string { return c.Subject }

// TokenConfig configures access token signing.
type TokenConfig struct {
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
	Leeway    time.Duration
}

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	config TokenConfig
}

func NewTokenManager(config TokenConfig) (*TokenManager, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if config.AccessTTL <= 0 {
		return nil, errors.New("access ttl must be positive")
	}
	return &TokenManager{config: config}, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.config.AccessTTL }

// SignAccess issues an access token for the user, returning the token and
// its expiry.
func (m *TokenManager) SignAccess(user *domain.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(m.config.AccessTTL)
	claims := Claims{
		Identity: user.Identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify parses and validates an access token. Any parse or validation
// failure reports domain.ErrUnauthenticated.
func (m *TokenManager) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	parser := jwt.NewParser(options...)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, domain.ErrUnauthenticated
	}
	return claims, nil
}
