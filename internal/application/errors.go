package application

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrSubmission       = errors.New("submission failed")
	ErrDraftCorrupt     = errors.New("draft corrupt")
	ErrSubscription     = errors.New("subscription failed")
	ErrFormDisabled     = errors.New("form is disabled while submitting")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrUnknownField     = errors.New("unknown field")
	ErrUnknownNotice    = errors.New("unknown notice")
	ErrNotMounted       = errors.New("form not mounted")
	ErrClosed           = errors.New("form closed")
)

// ValidationError carries the per-field messages that blocked a submission.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d field(s)", ErrValidation, len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
