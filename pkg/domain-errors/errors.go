// Package domainerrors provides coded, wrappable errors for the engine.
//
// Services translate infrastructure facts (pkg/platform/sentinel) into these
// at the boundary so callers can branch on a stable code rather than on
// message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. Codes are part of the public contract:
// callers surface the specific code, never a generic failure.
type Code string

const (
	// CodeValidation marks malformed input: an incomplete consent record, an
	// unknown correction field, an unsupported export format. Never retried.
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeNotFound marks a reference to a record that does not exist, such as
	// a consent id passed to withdrawal.
	CodeNotFound Code = "NOT_FOUND"

	// CodeEncryptionFailed marks a storage write fault. The message carries
	// the failing operation's context. Not retried internally.
	CodeEncryptionFailed Code = "ENCRYPTION_FAILED"

	// CodeCorruptionDetected marks a storage read fault, including envelopes
	// whose schema version is unknown. Not retried internally.
	CodeCorruptionDetected Code = "CORRUPTION_DETECTED"

	// CodeAuditLogFailed marks a best-effort audit append that could not be
	// persisted. It is routed to the failure sink, never propagated to the
	// primary caller.
	CodeAuditLogFailed Code = "AUDIT_LOG_FAILED"

	// CodeMissingConsent marks an operation that requires an active consent
	// where none exists.
	CodeMissingConsent Code = "MISSING_CONSENT"

	// CodeTimeout marks a context cancellation or deadline inside a
	// serialized per-user transaction.
	CodeTimeout Code = "TIMEOUT"

	// CodeInternal is the fallback for invariant violations.
	CodeInternal Code = "INTERNAL"
)

// Error is a coded domain error. Construct via New or Wrap.
type Error struct {
	code Code
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Code returns the error's code.
func (e *Error) Code() Code { return e.code }

// New creates a coded error with no cause.
func New(code Code, msg string) error {
	return &Error{code: code, msg: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and context to an existing error. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, msg: msg, err: err}
}

// CodeOf extracts the code from err, walking the wrap chain. Errors outside
// this package report CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.code == code {
			return true
		}
		err = de.err
	}
	return false
}
