package someipc

import (
	"errors"
	"syscall"
	"testing"

	"github.com/someipc/go-someipc/internal/correlator"
	"github.com/someipc/go-someipc/internal/ring"
)

func TestStructuredError(t *testing.T) {
	err := NewError("Connect", ErrCodeConfigurationError, "missing domain")

	if err.Op != "Connect" {
		t.Errorf("Expected Op=Connect, got %s", err.Op)
	}
	if err.Code != ErrCodeConfigurationError {
		t.Errorf("Expected Code=ErrCodeConfigurationError, got %s", err.Code)
	}

	expected := "someipc: missing domain (op=Connect)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestErrorWithErrno(t *testing.T) {
	err := NewErrorWithErrno("Connect", ErrCodeAccessDenied, syscall.EPERM)

	if err.Errno != syscall.EPERM {
		t.Errorf("Expected Errno=EPERM, got %v", err.Errno)
	}
	if err.Code != ErrCodeAccessDenied {
		t.Errorf("Expected Code=ErrCodeAccessDenied, got %s", err.Code)
	}
}

func TestRequestError(t *testing.T) {
	err := NewRequestError("Invoke", 0x00000007, ErrCodeClientIDsOverflow, "no ids left")

	if err.RequestType != 0x00000007 {
		t.Errorf("Expected RequestType=0x7, got %#x", err.RequestType)
	}

	expected := "someipc: no ids left (op=Invoke)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapErrorTranslatesRingSentinels(t *testing.T) {
	err := WrapError("Pump", ring.ErrDisconnected)
	if err.Code != ErrCodeDisconnected {
		t.Errorf("Expected Code=ErrCodeDisconnected, got %s", err.Code)
	}
	if !errors.Is(err, ring.ErrDisconnected) {
		t.Error("Expected wrapped error to satisfy errors.Is for ring.ErrDisconnected")
	}
}

func TestWrapErrorTranslatesCorrelatorError(t *testing.T) {
	inner := &correlator.Error{Code: correlator.ErrAccessDenied}
	err := WrapError("Invoke", inner)

	if err.Code != ErrCodeAccessDenied {
		t.Errorf("Expected Code=ErrCodeAccessDenied, got %s", err.Code)
	}
}

func TestWrapErrorTranslatesErrno(t *testing.T) {
	err := WrapError("Connect", syscall.ENOENT)

	if err.Code != ErrCodeDisconnected {
		t.Errorf("Expected Code=ErrCodeDisconnected, got %s", err.Code)
	}
	if err.Errno != syscall.ENOENT {
		t.Errorf("Expected Errno=ENOENT, got %v", err.Errno)
	}
	if !errors.Is(err, syscall.ENOENT) {
		t.Error("Expected wrapped error to satisfy errors.Is for ENOENT")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("Test", ErrCodeBusy, "channel full")

	if !IsCode(err, ErrCodeBusy) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeIOError) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeBusy) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestIsErrno(t *testing.T) {
	err := NewErrorWithErrno("Test", ErrCodeIOError, syscall.EIO)

	if !IsErrno(err, syscall.EIO) {
		t.Error("IsErrno should return true for matching errno")
	}
	if IsErrno(err, syscall.EPERM) {
		t.Error("IsErrno should return false for non-matching errno")
	}
	if IsErrno(nil, syscall.EIO) {
		t.Error("IsErrno should return false for nil error")
	}
}

func TestErrnoMapping(t *testing.T) {
	testCases := []struct {
		errno    syscall.Errno
		expected ErrorCode
	}{
		{syscall.ENOENT, ErrCodeDisconnected},
		{syscall.ECONNREFUSED, ErrCodeDisconnected},
		{syscall.EPERM, ErrCodeAccessDenied},
		{syscall.ENOMEM, ErrCodeAllocationFailure},
		{syscall.EIO, ErrCodeIOError},
	}

	for _, tc := range testCases {
		code := mapErrnoToCode(tc.errno)
		if code != tc.expected {
			t.Errorf("mapErrnoToCode(%v) = %s, want %s", tc.errno, code, tc.expected)
		}
	}
}
