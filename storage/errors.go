package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a photo or album ID has no document.
var ErrNotFound = errors.New("not found")

// ValidationError marks caller input that cannot be accepted. It is
// surfaced to the caller and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StoreUnavailableError wraps a failure of one of the backing stores. The
// store-specific error stays inside; callers only see which store failed.
// Retrying is the job of the store client or a higher layer, never of the
// core.
type StoreUnavailableError struct {
	Store string
	Err   error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s store unavailable: %v", e.Store, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

func storeErr(store string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreUnavailableError{Store: store, Err: err}
}
