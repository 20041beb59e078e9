package engine

import (
	"errors"
	"fmt"
)

// ErrStandardArchived is returned when a recompute targets a standard that
// is archived or soft-deleted.
var ErrStandardArchived = errors.New("standard is archived")

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("engine closed")

// EngineError is an error surfaced by the engine with a stable code.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// StandardID identifies the affected standard, if any.
	StandardID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeUnauthenticated indicates no user is signed in.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// ErrCodeStandardArchived indicates the standard no longer accepts edits.
	ErrCodeStandardArchived ErrorCode = "STANDARD_ARCHIVED"

	// ErrCodeStepsExceeded indicates a walk hit the step ceiling.
	ErrCodeStepsExceeded ErrorCode = "STEPS_EXCEEDED"

	// ErrCodeWalkFailed indicates a read or write failed mid-walk.
	ErrCodeWalkFailed ErrorCode = "WALK_FAILED"

	// ErrCodeRecomputeFailed indicates a log-edit recompute failed.
	ErrCodeRecomputeFailed ErrorCode = "RECOMPUTE_FAILED"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.StandardID != "" {
		msg += fmt.Sprintf(" (standard=%s)", e.StandardID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first EngineError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func newArchivedError(standardID string) *EngineError {
	return &EngineError{
		Code:       ErrCodeStandardArchived,
		Message:    "standard does not accept log edits",
		StandardID: standardID,
		Err:        ErrStandardArchived,
	}
}

func newWalkError(standardID string, err error) *EngineError {
	code := ErrCodeWalkFailed
	if IsStepsExceededError(err) {
		code = ErrCodeStepsExceeded
	}
	return &EngineError{
		Code:       code,
		Message:    "catch-up walk aborted",
		StandardID: standardID,
		Err:        err,
	}
}
