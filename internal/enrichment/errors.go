package enrichment

import (
	"errors"
	"fmt"
)

var (
	ErrRemoteQuotaExhausted = errors.New("remote quota exhausted")
	ErrRemoteRateLimited    = errors.New("remote rate limited")
	ErrRemoteServerError    = errors.New("remote server error")
	ErrRemoteTimeout        = errors.New("remote request timed out")
	ErrRemoteRejected       = errors.New("remote rejected request")
	ErrMalformedResponse    = errors.New("malformed completion response")
)

// Error describes a failed enrichment call. errors.Is matches both Kind and the
// underlying cause.
type Error struct {
	Kind       error
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("narrative enrichment failed after %d attempt(s): %v", e.Attempts, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	return errors.Is(err, ErrRemoteRateLimited) ||
		errors.Is(err, ErrRemoteServerError) ||
		errors.Is(err, ErrRemoteTimeout)
}
