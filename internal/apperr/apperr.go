// Package apperr defines the error taxonomy shared by the allocation and
// activation paths. Every failure that crosses the service boundary carries a
// stable kind so handlers can map it to an HTTP status and the audit trail
// can record it without parsing messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindInvalidRequest      Kind = "invalid_request"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindExhausted           Kind = "exhausted"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUnresolvable        Kind = "unresolvable"
)

// Error is a kinded error with optional structured details (e.g. the existing
// voucher code on an "already has voucher" conflict, or last_used_at on a
// free-plan rejection).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a kinded error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a kinded error around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetail attaches a structured detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// KindOf extracts the kind from err, or KindUpstreamUnavailable for untyped
// errors (anything untyped reaching the boundary came from a collaborator).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamUnavailable
}

// DetailsOf extracts structured details from err, if any.
func DetailsOf(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExhausted:
		return http.StatusGone
	case KindUnresolvable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
