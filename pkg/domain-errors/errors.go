// Package domainerrors defines the error taxonomy surfaced by domain
// services. Every rejected action carries a Code so callers and the HTTP
// layer can react without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks malformed input: empty purpose, empty item set,
	// unknown item id. Always rejected before any ledger write.
	CodeValidation Code = "validation"

	// CodeNotFound marks an unknown request or grant id. No side effects.
	CodeNotFound Code = "not_found"

	// CodeInvalidState marks an action against an entity not in the required
	// state, e.g. deciding an already-decided request. No side effects; this
	// is the mechanism enforcing at-most-once decisions.
	CodeInvalidState Code = "invalid_state"

	// CodeStorage marks a ledger or store I/O failure. Fatal to the operation
	// in progress; the caller must retry the whole logical operation.
	CodeStorage Code = "storage"

	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is a coded domain error. It may wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
