package utils

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers of the diagnostics operations.
var (
	ErrInvalidInput      = errors.New("InvalidInput")
	ErrInsufficientData  = errors.New("InsufficientData")
	ErrDivisionUndefined = errors.New("DivisionUndefined")
	ErrNotFound          = errors.New("NotFound")
	ErrInvalidState      = errors.New("InvalidState")
)

// KindInternal labels errors that do not carry one of the known kinds.
const KindInternal = "Internal"

var kinds = []error{
	ErrInvalidInput,
	ErrInsufficientData,
	ErrDivisionUndefined,
	ErrNotFound,
	ErrInvalidState,
}

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// InvalidInput reports malformed or out-of-range arguments.
func InvalidInput(op, format string, args ...any) error {
	return NewAppError(op, fmt.Sprintf(format, args...), ErrInvalidInput)
}

// InsufficientData reports too few samples for a statistical computation.
func InsufficientData(op, format string, args ...any) error {
	return NewAppError(op, fmt.Sprintf(format, args...), ErrInsufficientData)
}

// DivisionUndefined reports a zero denominator in a rate.
func DivisionUndefined(op, format string, args ...any) error {
	return NewAppError(op, fmt.Sprintf(format, args...), ErrDivisionUndefined)
}

// NotFound reports a reference to something that does not exist.
func NotFound(op, format string, args ...any) error {
	return NewAppError(op, fmt.Sprintf(format, args...), ErrNotFound)
}

// InvalidState reports an operation attempted in a terminal state.
func InvalidState(op, format string, args ...any) error {
	return NewAppError(op, fmt.Sprintf(format, args...), ErrInvalidState)
}

// KindOf returns the error kind name for err, or KindInternal. A nil error has
// no kind.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return KindInternal
}

// Message returns the human-facing part of err without the kind suffix.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
