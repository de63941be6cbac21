// Package fatal centralizes the assert-and-abort idiom used throughout the
// core for programmer-error invariants (double invoke, re-registration,
// allocation failure) that spec.md treats as unrecoverable.
package fatal

import "github.com/someipc/go-someipc/internal/logging"

// Abort logs op and reason at error level, then panics. It never returns.
// Callers in the core call this only for conditions spec.md documents as
// fatal, never for recoverable protocol or I/O errors.
func Abort(op, reason string) {
	logging.Default().Error("fatal invariant violation", "op", op, "reason", reason)
	panic("someipc: fatal: " + op + ": " + reason)
}
