package domain

import "time"

// User is a registered identity. SecretHash is a bcrypt hash; the plaintext
// secret is never stored.
type User struct {
	ID         string    `json:"id"`
	Identity   string    `json:"identity"`
	SecretHash []byte    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CredentialPair is one issued access/refresh token pair with its expiries.
// The refresh token's lifetime bounds the access token's.
type CredentialPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AccessExpired reports whether the access token must not be sent at now.
// The boundary instant itself counts as expired.
func (p CredentialPair) AccessExpired(now time.Time) bool {
	return !now.Before(p.AccessExpiresAt)
}

// RefreshExpired reports whether the refresh token can no longer rotate.
func (p CredentialPair) RefreshExpired(now time.Time) bool {
	return !now.Before(p.RefreshExpiresAt)
}

// RefreshRecord is the server-side record of one outstanding refresh token.
// Only the SHA-256 hash of the token is kept; rotation deletes the record, so
// each token is usable once.
type RefreshRecord struct {
	TokenHash string    `json:"tokenHash"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the record is past its lifetime at now.
func (r RefreshRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
