// Package errors defines the error taxonomy shared by site drivers and the
// transfer pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// TransientError is a retry-eligible failure: timeouts, rate limiting,
// temporary network trouble.
type TransientError struct {
	Message    string
	RetryAfter time.Duration // Server-provided hint, zero when unknown
	Err        error
}

func (e *TransientError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s (retry after %s)", msg, e.RetryAfter)
	}
	return msg
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError creates a TransientError wrapping err.
func NewTransientError(message string, err error) *TransientError {
	return &TransientError{Message: message, Err: err}
}

// NewRateLimitError creates a TransientError for a throttled request.
func NewRateLimitError(message string, retryAfter time.Duration) *TransientError {
	return &TransientError{Message: message, RetryAfter: retryAfter}
}

// FatalError is a failure that retrying will not fix: rejected credentials,
// unrecognized page structure, a destination refusing the operation.
type FatalError struct {
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FatalError) Unwrap() error { return e.Err }

// NewFatalError creates a FatalError wrapping err.
func NewFatalError(message string, err error) *FatalError {
	return &FatalError{Message: message, Err: err}
}

// ConflictError reports that the destination already holds an equal or
// greater rating, so the desired end state is already reached.
type ConflictError struct {
	TargetID string
	Existing float64 // Rating already stored, in the destination's own scale
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already rated %g", e.TargetID, e.Existing)
}

// NewConflictError creates a ConflictError for targetID.
func NewConflictError(targetID string, existing float64) *ConflictError {
	return &ConflictError{TargetID: targetID, Existing: existing}
}

// StopProcessingError represents a user-driven stop signal (e.g., from TUI).
type StopProcessingError struct {
	Reason string
}

func (e *StopProcessingError) Error() string {
	return e.Reason
}

// NewStopProcessingError creates a StopProcessingError with the provided reason.
func NewStopProcessingError(reason string) *StopProcessingError {
	return &StopProcessingError{Reason: reason}
}

// IsTransient reports whether err is a TransientError (even when wrapped).
func IsTransient(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}

// RetryAfter returns the server-provided retry hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var target *TransientError
	if errors.As(err, &target) {
		return target.RetryAfter
	}
	return 0
}

// IsFatal reports whether err is a FatalError (even when wrapped).
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError (even when wrapped).
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsStopProcessingError reports whether err is a StopProcessingError (even when wrapped).
func IsStopProcessingError(err error) bool {
	var stopErr *StopProcessingError
	return errors.As(err, &stopErr)
}
