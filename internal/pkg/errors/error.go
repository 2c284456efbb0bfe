package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrConflict        = errors.New("conflict: resource already exists")
	ErrInternal        = errors.New("internal error")
	ErrNoPaymentMethod = errors.New("no saved payment method")
	ErrMaxRetries      = errors.New("max retries reached")
	ErrRequiresAction  = errors.New("payment requires customer action")
	ErrGateway         = errors.New("payment gateway error")
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
