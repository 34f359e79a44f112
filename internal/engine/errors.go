package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a defect detected while running fibers.
//
// Runtime errors include:
//   - Interpreter defects: malformed bytecode, bad register access
//   - Uneventful steps: a step that produced no scheduling decision
//   - Protocol violations: a message for a fiber not waiting for it
//   - Lost resources: a pending operation dropped its resource
//   - Stack overflow: call depth beyond the configured limit
//
// Language-level failures are ir.Failure values, never RuntimeErrors.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// WorkerID and FiberID locate the defect.
	WorkerID int64
	FiberID  int64

	// Module and Func name the frame that was running, if any.
	Module string
	Func   string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInterpreterDefect indicates malformed code or a register fault.
	ErrCodeInterpreterDefect RuntimeErrorCode = "INTERPRETER_DEFECT"

	// ErrCodeUneventful indicates a step that produced no scheduling event.
	ErrCodeUneventful RuntimeErrorCode = "UNEVENTFUL"

	// ErrCodeProtocolViolation indicates an inconsistent message exchange.
	ErrCodeProtocolViolation RuntimeErrorCode = "PROTOCOL_VIOLATION"

	// ErrCodeResourceLost indicates a pending operation lost its resource.
	ErrCodeResourceLost RuntimeErrorCode = "RESOURCE_LOST"

	// ErrCodeStackOverflow indicates the call depth limit was exceeded.
	ErrCodeStackOverflow RuntimeErrorCode = "STACK_OVERFLOW"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Module != "" {
		msg += fmt.Sprintf(" (worker=%d, fiber=%d, in %s.%s)", e.WorkerID, e.FiberID, e.Module, e.Func)
	} else if e.FiberID != 0 {
		msg += fmt.Sprintf(" (worker=%d, fiber=%d)", e.WorkerID, e.FiberID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// IsDefect returns true if err is a fiber-fatal RuntimeError.
// Uses errors.As to handle wrapped errors.
func IsDefect(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code != ErrCodeProtocolViolation
	}
	return false
}

// IsProtocolError returns true if err is a protocol violation.
func IsProtocolError(err error) bool {
	return hasCode(err, ErrCodeProtocolViolation)
}

// IsStackOverflow returns true if err is a stack overflow.
func IsStackOverflow(err error) bool {
	return hasCode(err, ErrCodeStackOverflow)
}

// ErrorCode returns the RuntimeErrorCode of err, or "" if it has none.
func ErrorCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == code
}

// newDefect wraps cause as an interpreter defect unless it already is a
// RuntimeError.
func newDefect(code RuntimeErrorCode, cause error, format string, args ...any) *RuntimeError {
	var re *RuntimeError
	if errors.As(cause, &re) {
		return re
	}
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

func newProtocolError(workerID, fiberID int64, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeProtocolViolation,
		Message:  fmt.Sprintf(format, args...),
		WorkerID: workerID,
		FiberID:  fiberID,
	}
}
