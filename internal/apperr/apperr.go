// Package apperr classifies service errors so that transports can map them
// to status codes without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a service error.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Error is a categorized error. Detail is safe to show to clients.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(detail string) error { return &Error{Kind: KindUnauthorized, Detail: detail} }
func Forbidden(detail string) error    { return &Error{Kind: KindForbidden, Detail: detail} }
func NotFound(detail string) error     { return &Error{Kind: KindNotFound, Detail: detail} }
func Conflict(detail string) error     { return &Error{Kind: KindConflict, Detail: detail} }
func Validation(detail string) error   { return &Error{Kind: KindValidation, Detail: detail} }

// Validationf formats a validation detail.
func Validationf(format string, args ...any) error {
	return Validation(fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DetailOf returns the client-facing detail of err, or fallback for
// uncategorized errors.
func DetailOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	return fallback
}
