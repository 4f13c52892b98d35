package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers. Only Transient errors are worth retrying.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindTransient  Kind = "transient"
)

// Kind sentinels, usable with errors.Is against any *Error.
var (
	ErrValidation = &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "validation failed"}
	ErrConflict   = &Error{Kind: KindConflict, Code: "CONFLICT", Message: "conflict"}
	ErrNotFound   = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "not found"}
	ErrTransient  = &Error{Kind: KindTransient, Code: "SERVICE_UNAVAILABLE", Message: "temporarily unavailable"}
)

type Error struct {
	Kind    Kind
	Code    string // stable machine code, e.g. DUPLICATE_CHECK_IN
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the exact error, or its kind when target is one of the kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	if isKindSentinel(t) {
		return e.Kind == t.Kind
	}
	return false
}

func isKindSentinel(e *Error) bool {
	return e == ErrValidation || e == ErrConflict || e == ErrNotFound || e == ErrTransient
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Transient wraps an infrastructure failure (storage unreachable, timeout).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransient, Code: ErrTransient.Code, Message: ErrTransient.Message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
