package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a cart or product the caller referenced
	// does not exist. Remove/clear treat it as "nothing to do"; add treats
	// it as a hard failure.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock is returned when a reservation asks for more
	// units than a variant currently holds. Stock is never clamped below
	// zero; the caller must re-query availability.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStaleWrite is returned when a cart save is based on an outdated
	// read of the aggregate. The caller reloads and retries, bounded.
	ErrStaleWrite = errors.New("stale write rejected")

	// ErrUnavailable is returned when a product exists but cannot be added
	// to a cart (archived, draft, or fully out of stock).
	ErrUnavailable = errors.New("product is unavailable")
)

// ValidationError reports a field whose value is outside its documented
// bounds. It is the caller's fault and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field=%s with reason=%s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) ValidationError {
	return ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
