// Package errors defines the typed failure taxonomy shared across the
// backend. Components classify failures at the point they occur; the HTTP
// boundary maps them to responses exactly once.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a failure class. Every kind maps to exactly one HTTP
// status and machine code.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindInternal            Kind = "internal"
)

// Error is a classified failure with its response mapping attached.
type Error struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails attaches a detail entry and returns the error for chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, status int, code, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Status:  status,
		Message: message,
		Err:     cause,
	}
}

// Validation reports malformed or out-of-range input. Callers attach the
// offending field path via WithDetails.
func Validation(message string) *Error {
	return newError(KindValidation, http.StatusUnprocessableEntity, "ERR_422", message, nil)
}

// Unauthorized reports a missing, invalid or expired credential.
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, http.StatusUnauthorized, "ERR_401", message, nil)
}

// Forbidden reports a valid credential with an insufficient role.
func Forbidden(message string) *Error {
	return newError(KindForbidden, http.StatusForbidden, "ERR_403", message, nil)
}

// NotFound reports a referenced entity that does not exist.
func NotFound(message string) *Error {
	return newError(KindNotFound, http.StatusNotFound, "ERR_404", message, nil)
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return newError(KindConflict, http.StatusConflict, "ERR_409", message, nil)
}

// UpstreamUnavailable reports the model service being unreachable or having
// exhausted its retry budget at the connection level.
func UpstreamUnavailable(message string, cause error) *Error {
	return newError(KindUpstreamUnavailable, http.StatusBadGateway, "ERR_502", message, cause)
}

// UpstreamTimeout reports the model service exceeding its deadline.
func UpstreamTimeout(message string, cause error) *Error {
	return newError(KindUpstreamTimeout, http.StatusGatewayTimeout, "ERR_504", message, cause)
}

// Internal reports any unclassified local failure.
func Internal(message string, cause error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, "ERR_500", message, cause)
}

// FromError extracts the classified error from err. Unclassified errors are
// wrapped as Internal so no raw fault reaches a caller unmapped.
func FromError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal server error", err)
}

// KindOf returns the kind of err, or KindInternal when unclassified.
func KindOf(err error) Kind {
	return FromError(err).Kind
}

// IsKind reports whether err classifies as the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
