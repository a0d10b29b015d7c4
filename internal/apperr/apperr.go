// Package apperr defines the error type shared by the backend procedures,
// the JSON-RPC front door and the sync client.
package apperr

import (
	"errors"
	"fmt"
)

// AppError carries a stable code and a short human-readable message.
// Field is set for validation errors that belong to a single input.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any *AppError with the same code, so sentinels like
// ErrInsufficientFunds work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

// InvalidField is a validation error attached to one input field.
func InvalidField(field, msg string) error {
	return &AppError{Code: CodeInvalidArgument, Message: msg, Field: field}
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func Forbidden(msg string) error {
	return New(CodePermissionDenied, msg)
}

func Internal(msg string) error {
	return New(CodeInternal, msg)
}

func FailedPrecondition(msg string) error {
	return New(CodeFailedPrecondition, msg)
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Field
	}
	return ""
}

// Message returns the short text shown to a user for err. AppErrors
// surface their message verbatim without the wrapped cause; anything
// else is reported generically.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "Something went wrong. Please try again."
}
