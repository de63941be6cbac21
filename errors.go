package someipc

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/someipc/go-someipc/internal/correlator"
	"github.com/someipc/go-someipc/internal/ring"
	"github.com/someipc/go-someipc/internal/sendqueue"
	"github.com/someipc/go-someipc/internal/writer"
)

// Error is a structured client error with enough context to diagnose which
// operation, request type, and underlying cause produced it.
type Error struct {
	Op          string        // Operation that failed (e.g. "Connect", "Invoke")
	RequestType uint32        // Control request type, if applicable (0 otherwise)
	Code        ErrorCode     // High-level error category
	Errno       syscall.Errno // Underlying syscall errno, if applicable (0 otherwise)
	Msg         string        // Human-readable message
	Inner       error         // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.RequestType != 0 {
		parts = append(parts, fmt.Sprintf("request_type=%#x", e.RequestType))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("someipc: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("someipc: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support, matching on ErrorCode.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents high-level error categories, per spec.md §7.
type ErrorCode string

const (
	ErrCodeProtocolViolation  ErrorCode = "protocol violation"
	ErrCodeTooLarge           ErrorCode = "message too large"
	ErrCodeBusy               ErrorCode = "channel busy"
	ErrCodeDisconnected       ErrorCode = "disconnected"
	ErrCodeResourceExhausted  ErrorCode = "resource exhausted"
	ErrCodeAccessDenied       ErrorCode = "access denied"
	ErrCodeConfigurationError ErrorCode = "configuration error"
	ErrCodeClientIDsOverflow  ErrorCode = "client ids overflow"
	ErrCodeIncorrectResponse  ErrorCode = "incorrect response length"
	ErrCodeNotConnected       ErrorCode = "not connected"
	ErrCodeAllocationFailure  ErrorCode = "allocation failure"
	ErrCodeIOError            ErrorCode = "I/O error"
)

// Error constructors

// NewError creates a new structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:   op,
		Code: code,
		Msg:  msg,
	}
}

// NewErrorWithErrno creates a new structured error carrying a syscall errno.
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Code:  code,
		Errno: errno,
		Msg:   errno.Error(),
	}
}

// NewRequestError creates a structured error scoped to a control request
// type (the value an Invoke call was made with).
func NewRequestError(op string, requestType uint32, code ErrorCode, msg string) *Error {
	return &Error{
		Op:          op,
		RequestType: requestType,
		Code:        code,
		Msg:         msg,
	}
}

// WrapError wraps an existing error with client context, translating known
// internal sentinel errors (from internal/ring, internal/writer,
// internal/sendqueue, internal/correlator) into the matching ErrorCode.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	// If it's already a structured error, just update the operation.
	if se, ok := inner.(*Error); ok {
		return &Error{
			Op:          op,
			RequestType: se.RequestType,
			Code:        se.Code,
			Errno:       se.Errno,
			Msg:         se.Msg,
			Inner:       se.Inner,
		}
	}

	var corrErr *correlator.Error
	if errors.As(inner, &corrErr) {
		return &Error{Op: op, Code: mapCorrelatorCode(corrErr.Code), Msg: inner.Error(), Inner: inner}
	}

	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{Op: op, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}

	switch {
	case errors.Is(inner, ring.ErrProtocolViolation), errors.Is(inner, writer.ErrProtocolError):
		return &Error{Op: op, Code: ErrCodeProtocolViolation, Msg: inner.Error(), Inner: inner}
	case errors.Is(inner, ring.ErrDisconnected):
		return &Error{Op: op, Code: ErrCodeDisconnected, Msg: inner.Error(), Inner: inner}
	case errors.Is(inner, ring.ErrRingFull), errors.Is(inner, writer.ErrBusy):
		return &Error{Op: op, Code: ErrCodeBusy, Msg: inner.Error(), Inner: inner}
	case errors.Is(inner, writer.ErrTooLarge):
		return &Error{Op: op, Code: ErrCodeTooLarge, Msg: inner.Error(), Inner: inner}
	case errors.Is(inner, sendqueue.ErrResourceExhausted):
		return &Error{Op: op, Code: ErrCodeResourceExhausted, Msg: inner.Error(), Inner: inner}
	}

	return &Error{Op: op, Code: ErrCodeIOError, Msg: inner.Error(), Inner: inner}
}

// mapCorrelatorCode translates the Control Correlator's internal error
// taxonomy into the client's public ErrorCode.
func mapCorrelatorCode(code correlator.ErrorCode) ErrorCode {
	switch code {
	case correlator.ErrAccessDenied:
		return ErrCodeAccessDenied
	case correlator.ErrClientIDsOverflow:
		return ErrCodeClientIDsOverflow
	case correlator.ErrConfigurationError:
		return ErrCodeConfigurationError
	case correlator.ErrIncorrectResponseLength:
		return ErrCodeIncorrectResponse
	case correlator.ErrDisconnected:
		return ErrCodeDisconnected
	default:
		return ErrCodeNotConnected
	}
}

// mapErrnoToCode maps syscall errno to client error codes.
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT, syscall.ECONNREFUSED:
		return ErrCodeDisconnected
	case syscall.EPERM, syscall.EACCES:
		return ErrCodeAccessDenied
	case syscall.ENOMEM, syscall.ENOSPC:
		return ErrCodeAllocationFailure
	default:
		return ErrCodeIOError
	}
}

// IsCode checks if an error matches a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Errno == errno
	}
	return false
}
