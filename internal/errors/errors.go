// Package errors provides coded domain errors for the PageTune server.
//
// Reading-session failures are never fatal to the host. Each one carries a
// code so callers can decide whether to surface it (TrackResolutionFailed),
// retry it (CheckpointWriteFailed) or silently degrade (CheckpointReadFailed).
//
//	if errors.Is(err, errors.ErrTrackResolutionFailed) {
//	    // keep the previous track, warn the reader
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeValidation             Code = "VALIDATION"
	CodeConflict               Code = "CONFLICT"
	CodeInternal               Code = "INTERNAL"
	CodeChapterListUnavailable Code = "CHAPTER_LIST_UNAVAILABLE"
	CodeTrackResolutionFailed  Code = "TRACK_RESOLUTION_FAILED"
	CodeCheckpointWriteFailed  Code = "CHECKPOINT_WRITE_FAILED"
	CodeCheckpointReadFailed   Code = "CHECKPOINT_READ_FAILED"
	CodeSessionTerminated      Code = "SESSION_TERMINATED"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict, CodeSessionTerminated:
		return http.StatusConflict
	case CodeChapterListUnavailable, CodeTrackResolutionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Recoverable reports whether a session can keep running after this error.
func (c Code) Recoverable() bool {
	switch c {
	case CodeTrackResolutionFailed, CodeCheckpointWriteFailed, CodeCheckpointReadFailed:
		return true
	default:
		return false
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation             = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict               = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal               = &Error{Code: CodeInternal, Message: "internal error"}
	ErrChapterListUnavailable = &Error{Code: CodeChapterListUnavailable, Message: "chapter list unavailable"}
	ErrTrackResolutionFailed  = &Error{Code: CodeTrackResolutionFailed, Message: "track resolution failed"}
	ErrCheckpointWriteFailed  = &Error{Code: CodeCheckpointWriteFailed, Message: "checkpoint write failed"}
	ErrCheckpointReadFailed   = &Error{Code: CodeCheckpointReadFailed, Message: "checkpoint read failed"}
	ErrSessionTerminated      = &Error{Code: CodeSessionTerminated, Message: "session terminated"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// ChapterListUnavailable wraps a document fetch failure.
func ChapterListUnavailable(documentID string, err error) *Error {
	return &Error{
		Code:    CodeChapterListUnavailable,
		Message: fmt.Sprintf("chapter list unavailable for document %s", documentID),
		cause:   err,
	}
}

// TrackResolutionFailed wraps a generation-service failure for one chapter.
func TrackResolutionFailed(chapterIndex int, err error) *Error {
	return &Error{
		Code:    CodeTrackResolutionFailed,
		Message: fmt.Sprintf("could not resolve track for chapter %d", chapterIndex),
		Details: map[string]int{"chapter_index": chapterIndex},
		cause:   err,
	}
}

// CheckpointWriteFailed wraps a persistence put failure.
func CheckpointWriteFailed(documentID string, err error) *Error {
	return &Error{
		Code:    CodeCheckpointWriteFailed,
		Message: fmt.Sprintf("checkpoint write failed for document %s", documentID),
		cause:   err,
	}
}

// CheckpointReadFailed wraps a persistence get failure.
func CheckpointReadFailed(documentID string, err error) *Error {
	return &Error{
		Code:    CodeCheckpointReadFailed,
		Message: fmt.Sprintf("checkpoint read failed for document %s", documentID),
		cause:   err,
	}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
