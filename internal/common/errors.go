// Package common defines shared constants and sentinel errors used across
// server and client layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")
	ErrorBadRequest   = errors.New("bad request")

	// Token errors (signature, format or kind).
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongTokenType = fmt.Errorf("%w: wrong token type", ErrInvalidToken)

	// ErrConfiguration reports a deployment problem, e.g. a missing signing
	// secret. It is fatal at first use, never per-request.
	ErrConfiguration = errors.New("configuration error")
)

// Error attaches a human-readable detail to one of the sentinel kinds above.
// errors.Is(err, kind) holds for the returned value.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Kind }

// NewError returns an *Error of the given kind.
func NewError(kind error, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}

// Detail returns the human-readable detail carried by err, falling back to
// the error text.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
