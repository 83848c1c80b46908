package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the stable taxonomy exposed to callers.
// Transports branch on the kind, never on message text.
type Kind string

const (
	// KindNotFound covers unknown ids and share codes.
	KindNotFound Kind = "not_found"
	// KindForbidden covers permission denials.
	KindForbidden Kind = "forbidden"
	// KindInvalidState covers operations not valid for the current state.
	KindInvalidState Kind = "invalid_state"
	// KindExpired covers session time-limit violations.
	KindExpired Kind = "expired"
	// KindUnauthenticated covers missing, invalid, or unrefreshable credentials.
	KindUnauthenticated Kind = "unauthenticated"
	// KindValidation covers malformed input.
	KindValidation Kind = "validation"
	// KindUpstreamUnavailable covers extraction collaborator failures.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// Error is a taxonomy-tagged error value.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError builds a taxonomy error with the given kind and message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf reports the taxonomy kind of err, unwrapping as needed.
// Errors from outside the taxonomy yield the empty kind.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

var (
	// ErrQuizNotFound indicates an unknown quiz id.
	ErrQuizNotFound = NewError(KindNotFound, "quiz not found")
	// ErrShareCodeNotFound indicates an unresolvable share code.
	ErrShareCodeNotFound = NewError(KindNotFound, "share code not found")
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = NewError(KindNotFound, "session not found")
	// ErrQuestionNotFound indicates a question outside the session's snapshot.
	ErrQuestionNotFound = NewError(KindNotFound, "question not part of this session")
	// ErrChoiceNotFound indicates a choice outside the submitted question.
	ErrChoiceNotFound = NewError(KindNotFound, "choice not part of this question")
	// ErrGrantNotFound indicates a share grant that does not exist.
	ErrGrantNotFound = NewError(KindNotFound, "share grant not found")
	// ErrJobNotFound indicates an unknown ingestion job id.
	ErrJobNotFound = NewError(KindNotFound, "ingestion job not found")
	// ErrUserNotFound indicates an unknown identity.
	ErrUserNotFound = NewError(KindNotFound, "user not found")

	// ErrForbidden indicates the caller lacks permission for the target.
	ErrForbidden = NewError(KindForbidden, "permission denied")

	// ErrSessionFinished rejects answers against a terminal session.
	ErrSessionFinished = NewError(KindInvalidState, "session already finished")
	// ErrSessionCompleted rejects completing an already completed session.
	ErrSessionCompleted = NewError(KindInvalidState, "session already completed")
	// ErrQuizDraft rejects attempts and shares against an unpublished quiz.
	ErrQuizDraft = NewError(KindInvalidState, "quiz is still a draft")
	// ErrJobNotExtracted rejects confirming a job that holds no draft.
	ErrJobNotExtracted = NewError(KindInvalidState, "ingestion job has no extracted draft")
	// ErrDraftPublished rejects confirming a draft twice.
	ErrDraftPublished = NewError(KindInvalidState, "draft already published")

	// ErrSessionExpired rejects answers after the time limit has elapsed.
	ErrSessionExpired = NewError(KindExpired, "session time limit exceeded")

	// ErrUnauthenticated indicates a missing or invalid credential.
	ErrUnauthenticated = NewError(KindUnauthenticated, "authentication required")
	// ErrInvalidCredentials indicates a bad identity/secret combination.
	ErrInvalidCredentials = NewError(KindUnauthenticated, "invalid credentials")
	// ErrInvalidRefreshToken indicates an unknown, expired, or already rotated refresh token.
	ErrInvalidRefreshToken = NewError(KindUnauthenticated, "invalid refresh token")

	// ErrIdentityTaken indicates a registration against an existing identity.
	ErrIdentityTaken = NewError(KindValidation, "identity already registered")
	// ErrShareCodeTaken is returned by stores when a generated share code collides.
	ErrShareCodeTaken = NewError(KindValidation, "share code already in use")

	// ErrExtractorUnavailable indicates the extraction collaborator failed or timed out.
	ErrExtractorUnavailable = NewError(KindUpstreamUnavailable, "extraction service unavailable")
)

// Validationf builds a KindValidation error from a format string.
func Validationf(format string, args ...any) *Error {
	return NewError(KindValidation, fmt.Sprintf(format, args...))
}
