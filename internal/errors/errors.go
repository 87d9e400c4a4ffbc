package errors

import (
	"errors"
	"fmt"
)

// Resolution / mutation outcomes. These are expected results, not faults:
// handlers map each to a stable machine-readable code and status.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrExpired          = errors.New("resource expired")
	ErrLimitReached     = errors.New("view limit reached")
	ErrUnauthorized     = errors.New("requester is not the owner")
	ErrPasswordRequired = errors.New("password required")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrKeyExists        = errors.New("short key already exists")
	ErrQuotaExceeded    = errors.New("creation quota exceeded")
)

// ErrStoreUnavailable is the only retriable class: the store could not be
// reached at all, as opposed to a definite policy outcome.
var ErrStoreUnavailable = errors.New("store unavailable")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

type BusinessError struct {
	Code    string
	Message string
	Cause   error
}

func (e *BusinessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Cause
}

func NewBusinessError(code, message string, cause error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

var ErrKeyGeneration = NewBusinessError("KEY_GENERATION", "failed to generate unique short key", nil)

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func IsBusinessError(err error) bool {
	var businessErr *BusinessError
	return errors.As(err, &businessErr)
}

func GetValidationError(err error) *ValidationError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}
	return nil
}

func GetBusinessError(err error) *BusinessError {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr
	}
	return nil
}

// NewStoreError wraps an infrastructure fault so callers can distinguish
// "try again later" from policy denials via errors.Is(err, ErrStoreUnavailable).
func NewStoreError(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, cause)
}
