package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors carrying the same code and message so sentinel comparisons
// survive wrapping with fmt.Errorf("%w").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation builds an INVALID error with a formatted message.
func Validation(format string, args ...interface{}) *Error {
	return NewError(ErrCodeInvalid, fmt.Sprintf(format, args...))
}

// Common domain errors.
var (
	ErrUserNotFound         = NewError(ErrCodeNotFound, "user not found")
	ErrDonationNotFound     = NewError(ErrCodeNotFound, "donation not found")
	ErrTaskNotFound         = NewError(ErrCodeNotFound, "task not found")
	ErrNotificationNotFound = NewError(ErrCodeNotFound, "notification not found")
	ErrSessionNotFound      = NewError(ErrCodeNotFound, "session not found")

	ErrUnauthenticated    = NewError(ErrCodeUnauthorized, "authentication required")
	ErrInvalidCredentials = NewError(ErrCodeUnauthorized, "invalid email or password")
	ErrForbidden          = NewError(ErrCodeForbidden, "operation not permitted for this role")
	ErrNotVerified        = NewError(ErrCodeForbidden, "account is awaiting verification")
	ErrDonationForbidden  = NewError(ErrCodeForbidden, "donation not accessible")
	ErrTaskForbidden      = NewError(ErrCodeForbidden, "task not accessible")

	ErrDonationTaken  = NewError(ErrCodeConflict, "donation already accepted by another organization")
	ErrDonationClosed = NewError(ErrCodeConflict, "donation is no longer open for acceptance")
	ErrTaskTaken      = NewError(ErrCodeConflict, "task already accepted by another volunteer")
	ErrEmailTaken     = NewError(ErrCodeConflict, "email already registered")

	ErrDonationState = NewError(ErrCodeInvalidState, "donation is not in a state that allows this operation")
	ErrTaskState     = NewError(ErrCodeInvalidState, "task is not in a state that allows this transition")
	ErrUserState     = NewError(ErrCodeInvalidState, "user is not pending verification")

	ErrInvalidPayload = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// IsAuthorizationError reports whether err belongs to the authorization family
// (missing credentials or insufficient role/ownership).
func IsAuthorizationError(err error) bool {
	return IsDomainError(err, ErrCodeUnauthorized) || IsDomainError(err, ErrCodeForbidden)
}
