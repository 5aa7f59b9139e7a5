package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record, customer, vehicle or membership id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrRecordNumberConflict is returned when a unique record number could not be
	// reserved within the configured number of attempts.
	ErrRecordNumberConflict = errors.New("record number conflict")

	// ErrPaymentFailed is returned when the payment gateway reports an unsuccessful charge.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrSatisfactionRecorded is returned on a second satisfaction submission for a record.
	ErrSatisfactionRecorded = errors.New("customer satisfaction already recorded")

	// ErrInvalidState is returned when an operation is not allowed in the record's current status.
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
