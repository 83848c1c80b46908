package app

import (
	"context"
	"errors"

	"quizlink-service/internal/domain"
)

// grantFor loads the caller's grant for a quiz, or nil when none exists.
func grantFor(ctx context.Context, grants GrantStore, quizID, callerID string) (*domain.ShareGrant, error) {
	if callerID == "" {
		return nil, nil
	}
	grant, err := grants.Get(ctx, quizID, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrGrantNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return grant, nil
}

// authorizeView checks read access: the owner, any caller for a public quiz,
// or a grantee of any permission. Drafts are visible to their owner only.
func authorizeView(ctx context.Context, grants GrantStore, quiz *domain.Quiz, callerID string) error {
	if quiz.OwnerID == callerID && callerID != "" {
		return nil
	}
	if quiz.Draft {
		return domain.ErrForbidden
	}
	if quiz.Visibility == domain.VisibilityPublic {
		return nil
	}
	grant, err := grantFor(ctx, grants, quiz.ID, callerID)
	if err != nil {
		return err
	}
	if grant == nil {
		return domain.ErrForbidden
	}
	return nil
}

// authorizeAttempt checks whether the taker may start a session: the owner,
// any authenticated taker for a public quiz, or a grantee whose permission
// covers attempts. Drafts are not attemptable until published.
func authorizeAttempt(ctx context.Context, grants GrantStore, quiz *domain.Quiz, takerID string) error {
	if takerID == "" {
		return domain.ErrUnauthenticated
	}
	if quiz.Draft {
		if quiz.OwnerID != takerID {
			return domain.ErrForbidden
		}
		return domain.ErrQuizDraft
	}
	if quiz.OwnerID == takerID {
		return nil
	}
	if quiz.Visibility == domain.VisibilityPublic {
		return nil
	}
	grant, err := grantFor(ctx, grants, quiz.ID, takerID)
	if err != nil {
		return err
	}
	if grant == nil || !grant.Permission.AllowsAttempt() {
		return domain.ErrForbidden
	}
	return nil
}
