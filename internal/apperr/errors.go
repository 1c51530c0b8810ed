// Package apperr defines the error taxonomy shared by the client core.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy.
type Kind string

const (
	KindAuthenticationMissing Kind = "authentication_missing"
	KindAuthenticationInvalid Kind = "authentication_invalid"
	KindValidationFailed      Kind = "validation_failed"
	KindNetworkFailure        Kind = "network_failure"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindForbidden             Kind = "forbidden"
	KindInternal              Kind = "internal"
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind so that errors.Is(err, apperr.NotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	AuthenticationMissing = &Error{Kind: KindAuthenticationMissing}
	AuthenticationInvalid = &Error{Kind: KindAuthenticationInvalid}
	ValidationFailed      = &Error{Kind: KindValidationFailed}
	NetworkFailure        = &Error{Kind: KindNetworkFailure}
	NotFound              = &Error{Kind: KindNotFound}
	Conflict              = &Error{Kind: KindConflict}
	Forbidden             = &Error{Kind: KindForbidden}
	Internal              = &Error{Kind: KindInternal}
)

// ErrSubmitInFlight is returned when a write is attempted while the same one is outstanding.
var ErrSubmitInFlight = errors.New("submission already in flight")

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a ValidationFailed error from a message or cause.
func Validation(op string, err error) *Error {
	return New(KindValidationFailed, op, err)
}

// KindOf returns the Kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

