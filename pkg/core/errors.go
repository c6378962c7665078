package core

import (
	"errors"
	"fmt"
)

// Error is the application error type shared across the pipeline.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Code    string    `json:"code,omitempty"`

	// Underlying carries the wrapped cause, when one exists.
	Underlying error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrPermission: microphone access denied. Recoverable, the user may
	// retry Connect after granting access.
	ErrPermission ErrorType = "permission_error"

	// ErrConfig: a required credential or setting is missing. Fatal,
	// surfaced before any connection attempt, no retry path.
	ErrConfig ErrorType = "config_error"

	// ErrTransport: connection drop or handshake failure. Terminates the
	// session via full teardown; the caller owns retry policy.
	ErrTransport ErrorType = "transport_error"

	// ErrDecode: malformed inbound audio. Contained to the offending
	// buffer, never affects connection state.
	ErrDecode ErrorType = "decode_error"

	// ErrFormat: malformed base64 payload.
	ErrFormat ErrorType = "format_error"

	// ErrEvaluation: the scoring collaborator was unavailable. Caught
	// locally; a neutral fallback result is substituted.
	ErrEvaluation ErrorType = "evaluation_error"
)

// NewPermissionError creates a microphone permission error.
func NewPermissionError(message string, cause error) *Error {
	return &Error{Type: ErrPermission, Message: message, Underlying: cause}
}

// NewConfigError creates a fatal configuration error.
func NewConfigError(message string) *Error {
	return &Error{Type: ErrConfig, Message: message}
}

// NewTransportError creates a transport-level error.
func NewTransportError(message string, cause error) *Error {
	return &Error{Type: ErrTransport, Message: message, Underlying: cause}
}

// NewDecodeError creates an inbound audio decode error.
func NewDecodeError(message string, cause error) *Error {
	return &Error{Type: ErrDecode, Message: message, Underlying: cause}
}

// NewFormatError creates a payload format error.
func NewFormatError(message string, cause error) *Error {
	return &Error{Type: ErrFormat, Message: message, Underlying: cause}
}

// NewEvaluationError creates a scoring collaborator error.
func NewEvaluationError(message string, cause error) *Error {
	return &Error{Type: ErrEvaluation, Message: message, Underlying: cause}
}

// IsType reports whether err is an *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// Retryable reports whether the user should be offered a retry affordance.
// Everything except a missing credential is retryable from the UI's point of
// view.
func Retryable(err error) bool {
	return !IsType(err, ErrConfig)
}
