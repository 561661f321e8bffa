// Package domainerrors defines coded domain errors shared by services, stores
// and transports. Services attach a Code so transport layers can translate
// errors without string matching, and callers can branch with HasCode.
// Conventionally imported as dErrors.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks input that fails bounds or format checks. The
	// caller may resubmit; no state changed.
	CodeValidation Code = "validation"
	// CodeOffensiveContent marks text rejected by the content filter.
	CodeOffensiveContent Code = "offensive_content"
	// CodeRateLimited marks a sender over the daily quota.
	CodeRateLimited Code = "rate_limited"
	// CodeNotFound marks an unknown or lazily expired record. Terminal for
	// the flow that raised it.
	CodeNotFound Code = "not_found"
	// CodeUnauthorized marks an actor attempting an operation reserved for
	// another principal. Logged as security relevant.
	CodeUnauthorized Code = "unauthorized"
	// CodeConflict marks a state transition refused because the record moved
	// on (already published, already confirmed).
	CodeConflict Code = "conflict"
	// CodeDelivery marks an outbound chat post or DM that failed or timed out.
	CodeDelivery Code = "delivery"
	// CodeUnavailable marks unreachable infrastructure (store, broker).
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks everything else.
	CodeInternal Code = "internal"
)

// Error carries a Code alongside a human-readable message and optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		de = nil
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is re-exports errors.Is so callers need a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }
