// Package apperr defines the domain error taxonomy shared by the workflow
// services and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation          Kind = "validation"
	KindAuthorization       Kind = "authorization"
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindInsufficientBalance Kind = "insufficient_balance"
)

// Error is a domain failure. Two Errors match under errors.Is when their
// kinds are equal, so callers compare against the sentinels below.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrAuthorization       = &Error{Kind: KindAuthorization, Message: "not authorized"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidState        = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Message: "insufficient balance"}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func Authorization(format string, args ...any) *Error {
	return newf(KindAuthorization, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newf(KindInvalidState, format, args...)
}

func InsufficientBalance(balance, requested int) *Error {
	return newf(KindInsufficientBalance, "insufficient balance: have %d, need %d", balance, requested)
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err
// is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps err to a response status. Non-domain errors are 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusConflict
	case KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
