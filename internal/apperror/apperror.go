// Package apperror defines the typed failures returned by services and the
// HTTP status each of them maps to.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindGeocode        Kind = "geocode"
	KindStore          Kind = "store"
	KindInternal       Kind = "internal"
)

// UnknownMessage is reported for errors that carry no application kind
const UnknownMessage = "An unknown error occurred!"

// Error is a failure with a kind, a client-facing message and an HTTP status
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind with its default status
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Status:  defaultStatus(kind),
		Message: message,
		Cause:   cause,
	}
}

// Authentication is returned for a missing, malformed or expired credential
func Authentication(message string, cause error) *Error {
	return New(KindAuthentication, message, cause)
}

// Authorization is returned when a valid caller does not own the resource
func Authorization(message string) *Error {
	return New(KindAuthorization, message, nil)
}

// Validation is returned for malformed input
func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

// NotFound is returned for a missing entity
func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

// Store is returned for persistence failures, including aborted transactions
func Store(message string, cause error) *Error {
	return New(KindStore, message, cause)
}

// Geocode is returned when an address cannot be resolved. The status depends
// on the cause: 422 for an unknown address, 500 for provider failures.
func Geocode(message string, status int, cause error) *Error {
	e := New(KindGeocode, message, cause)
	e.Status = status
	return e
}

func defaultStatus(kind Kind) int {
	switch kind {
	case KindAuthentication:
		return http.StatusForbidden
	case KindAuthorization:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err
func StatusOf(err error) int {
	if appErr, ok := As(err); ok && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err
func MessageOf(err error) string {
	if appErr, ok := As(err); ok && appErr.Message != "" {
		return appErr.Message
	}
	return UnknownMessage
}

// Is reports whether err is an application error of the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
