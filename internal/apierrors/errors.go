// Package apierrors defines the field-scoped error body returned by every
// handler. Errors are keyed by the offending request field so clients can
// attach messages to the right input.
package apierrors

import (
	"fmt"
	"net/http"
)

// Well-known error codes.
const (
	CodeRequired      = "required"
	CodeInvalid       = "invalid"
	CodeNotFound      = "not_found"
	CodeAlreadyExists = "already_exists"
	CodeInternalError = "internal_error"
	CodeNotAllowed    = "not_allowed"
)

// ErrorBody is the JSON error envelope. Status is carried for the transport
// layer and never serialized.
type ErrorBody struct {
	Status int                 `json:"-"`
	Errors map[string][]string `json:"errors"`
}

// New creates an empty error body with the given HTTP status.
func New(status int) *ErrorBody {
	return &ErrorBody{Status: status, Errors: make(map[string][]string)}
}

// With appends an error code under a field key and returns the body for
// chaining.
func (e *ErrorBody) With(field, code string) *ErrorBody {
	e.Errors[field] = append(e.Errors[field], code)
	return e
}

// Error implements the error interface.
func (e *ErrorBody) Error() string {
	return fmt.Sprintf("status=%d errors=%v", e.Status, e.Errors)
}

// Unauthorized is the single externally observable outcome for every inbound
// token failure. The internal cause is logged, never echoed.
func Unauthorized() *ErrorBody {
	return New(http.StatusUnauthorized).With("authorization", CodeInvalid)
}

// AuthorizationRequired reports a missing Authorization header.
func AuthorizationRequired() *ErrorBody {
	return New(http.StatusUnauthorized).With("authorization", CodeRequired)
}

// TenantNotFound reports an unknown Tenant-ID header value.
func TenantNotFound() *ErrorBody {
	return New(http.StatusNotFound).With("tenant_id", CodeNotFound)
}

// Invalid reports a 400 for a single bad field.
func Invalid(field string) *ErrorBody {
	return New(http.StatusBadRequest).With(field, CodeInvalid)
}

// NotFound reports a 404 for a single field.
func NotFound(field string) *ErrorBody {
	return New(http.StatusNotFound).With(field, CodeNotFound)
}

// Conflict reports a uniqueness violation on a field.
func Conflict(field string) *ErrorBody {
	return New(http.StatusConflict).With(field, CodeAlreadyExists)
}

// Internal is the generic storage/server failure with a stable code.
func Internal() *ErrorBody {
	return New(http.StatusInternalServerError).With("application", CodeInternalError)
}
