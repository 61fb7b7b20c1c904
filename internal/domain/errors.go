package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the explanation and quiz flows.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrContentBlocked      = errors.New("content blocked")
	ErrOracleUnavailable   = errors.New("oracle unavailable")
	ErrServerMisconfigured = errors.New("server misconfigured")
)

var (
	ErrNoteNotFound  = errors.New("note not found")
	ErrDraftNotFound = errors.New("draft not found")
)

// Error is a classified failure. Message is safe to show to the caller;
// Cause is kept for logs only.
type Error struct {
	Kind        error
	Message     string
	BlockReason string
	Quota       *Quota // rate-limit refusals only
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// NewError builds a classified error.
func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// PublicMessage returns the user-facing text for err. Unclassified errors
// collapse to a generic message.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an unexpected server error occurred"
}
