// Package apierr defines the structured error type returned by the workflow
// engine. Errors carry a machine-readable code, a human-readable message
// and optional details, so CLI and HTTP callers can render them without
// string matching.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Error codes. Uppercase, underscore-separated, stable across minor versions.
const (
	NotFound                = "NOT_FOUND"
	InvalidTransition       = "INVALID_TRANSITION"
	InvalidState            = "INVALID_STATE"
	WipLimitExceeded        = "WIP_LIMIT_EXCEEDED"
	ConflictingActiveSprint = "CONFLICTING_ACTIVE_SPRINT"
	SprintClosed            = "SPRINT_CLOSED"
	Forbidden               = "FORBIDDEN"
	StorageError            = "STORAGE_ERROR"
	InvalidInput            = "INVALID_INPUT"
	NotOnBoard              = "NOT_ON_BOARD"
	InternalError           = "INTERNAL_ERROR"
)

// Sentinels for errors.Is matching. Any *Error with the same code matches.
var (
	ErrNotFound                = &Error{Code: NotFound, Message: "not found"}
	ErrInvalidTransition       = &Error{Code: InvalidTransition, Message: "invalid transition"}
	ErrInvalidState            = &Error{Code: InvalidState, Message: "invalid state"}
	ErrWipLimitExceeded        = &Error{Code: WipLimitExceeded, Message: "WIP limit exceeded"}
	ErrConflictingActiveSprint = &Error{Code: ConflictingActiveSprint, Message: "conflicting active sprint"}
	ErrSprintClosed            = &Error{Code: SprintClosed, Message: "sprint closed"}
	ErrForbidden               = &Error{Code: Forbidden, Message: "forbidden"}
	ErrStorage                 = &Error{Code: StorageError, Message: "storage error"}
	ErrInvalidInput            = &Error{Code: InvalidInput, Message: "invalid input"}
	ErrNotOnBoard              = &Error{Code: NotOnBoard, Message: "not on board"}
)

// Error represents a structured engine error with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Details map[string]any

	// Err is the underlying cause. Only storage errors wrap one.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a STORAGE_ERROR around err. A nil err returns nil.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: StorageError, Message: message, Err: err}
}

// WithDetails returns the error with the given details map attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or
// INTERNAL_ERROR for any other non-nil error. It returns "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// ExitCode returns 2 for internal and storage failures, 1 for all others.
func (e *Error) ExitCode() int {
	switch e.Code {
	case InternalError, StorageError:
		return 2 //nolint:mnd // exit code 2 for internal errors
	default:
		return 1
	}
}

// HTTPStatus maps the error code onto an HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case NotFound:
		return http.StatusNotFound
	case InvalidInput:
		return http.StatusBadRequest
	case InvalidTransition, InvalidState:
		return http.StatusUnprocessableEntity
	case WipLimitExceeded, ConflictingActiveSprint, SprintClosed, NotOnBoard:
		return http.StatusConflict
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// SilentError signals an exit code without additional output.
// Used by batch operations where results are already written to stdout.
type SilentError struct {
	Code int
}

// Error implements the error interface.
func (e *SilentError) Error() string { return "exit " + strconv.Itoa(e.Code) }
