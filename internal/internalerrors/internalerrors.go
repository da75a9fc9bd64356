// Package internalerrors describes the rejection kinds returned by the
// allocation and resolution service. Every rejection carries a stable kind
// and a human-readable reason.
package internalerrors

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error classification.
type Kind string

const (
	KindForbidden           Kind = "forbidden"
	KindInvalidDestination  Kind = "invalid_destination"
	KindInvalidAlias        Kind = "invalid_alias"
	KindReserved            Kind = "reserved"
	KindAlreadyExists       Kind = "already_exists"
	KindNotFound            Kind = "not_found"
	KindAllocationExhausted Kind = "allocation_exhausted"
	KindStorage             Kind = "storage_error"
)

// Error is a rejection with a kind, a reason for the caller and an optional cause.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrReserved)
// works regardless of the reason text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrForbidden           = &Error{Kind: KindForbidden, Reason: "you are forbidden to perform this action by admin"}
	ErrInvalidDestination  = &Error{Kind: KindInvalidDestination, Reason: "original URL doesn't exist"}
	ErrInvalidAlias        = &Error{Kind: KindInvalidAlias, Reason: "alias may contain only letters, digits, '-' and '_' (1-64 chars)"}
	ErrReserved            = &Error{Kind: KindReserved, Reason: "the requested custom URL is reserved"}
	ErrAlreadyExists       = &Error{Kind: KindAlreadyExists, Reason: "the requested custom URL already exists"}
	ErrNotFound            = &Error{Kind: KindNotFound, Reason: "no matching record"}
	ErrAllocationExhausted = &Error{Kind: KindAllocationExhausted, Reason: "could not allocate a free short URL, please try again"}
	ErrStorage             = &Error{Kind: KindStorage, Reason: "something went wrong, please try again"}
)

// New returns a rejection of the given kind.
func New(kind Kind, reason string) error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap returns a rejection of the given kind caused by err.
func Wrap(kind Kind, reason string, err error) error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the kind from err, or "" when err is not a rejection.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the caller-facing reason carried by err.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal error"
}
