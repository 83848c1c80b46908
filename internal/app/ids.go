package app

import (
	"context"
	"crypto/rand"
	"errors"

	"quizlink-service/internal/domain"
)

const (
	shareCodeLength   = 8
	shareCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	shareCodeAttempts = 5
)

// newShareCode returns a fixed-length unguessable code.
func newShareCode() (string, error) {
	buf := make([]byte, shareCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = shareCodeAlphabet[int(b)%len(shareCodeAlphabet)]
	}
	return string(buf), nil
}

// persistWithShareCode issues a share code and persists the quiz through the
// given store call, drawing a fresh code on a collision.
func persistWithShareCode(ctx context.Context, quiz *domain.Quiz, persist func(context.Context, *domain.Quiz) error) error {
	for attempt := 0; attempt < shareCodeAttempts; attempt++ {
		code, err := newShareCode()
		if err != nil {
			return err
		}
		quiz.ShareCode = code
		err = persist(ctx, quiz)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrShareCodeTaken) {
			return err
		}
	}
	return errors.New("could not allocate a unique share code")
}
