// Package apperrors declares the error-kind taxonomy shared by the HTTP API,
// the gRPC surface, and the coordinator's internal control flow.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way the API and RPC surfaces need to in order
// to pick a status code. It does not replace Go's error wrapping; Error
// carries a Kind alongside the usual message/wrapped-error chain.
type Kind string

const (
	NotFound           Kind = "not_found"
	InvalidArgument    Kind = "invalid_argument"
	FailedPrecondition Kind = "failed_precondition"
	Unauthenticated    Kind = "unauthenticated"
	Unavailable        Kind = "unavailable"
	Internal           Kind = "internal"
	DeadlineExceeded   Kind = "deadline_exceeded"
)

// Error is the typed error implementations throughout the module return.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind of err, defaulting to Internal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func IsNotFound(err error) bool           { return KindOf(err) == NotFound }
func IsInvalidArgument(err error) bool    { return KindOf(err) == InvalidArgument }
func IsFailedPrecondition(err error) bool { return KindOf(err) == FailedPrecondition }
