// Package apierr defines the closed error taxonomy shared by every layer.
// Errors are constructed at the lowest layer that recognises a condition and
// propagate unchanged to the HTTP boundary, which serializes them as the
// uniform error envelope.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies an error category with a fixed HTTP status.
type Kind string

const (
	KindRateLimited         Kind = "rate_limited"
	KindUnreachable         Kind = "unreachable"
	KindTimeout             Kind = "timeout"
	KindNotFound            Kind = "not_found"
	KindBadParameter        Kind = "bad_parameter"
	KindUpstreamBadPayload  Kind = "upstream_bad_payload"
	KindPersistenceFailure  Kind = "persistence_failure"
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindUpstreamServerError Kind = "upstream_server_error"
	KindUnknown             Kind = "unknown"
)

// kindStatus maps each kind to its HTTP status code.
var kindStatus = map[Kind]int{
	KindRateLimited:         http.StatusTooManyRequests,
	KindUnreachable:         http.StatusServiceUnavailable,
	KindTimeout:             http.StatusGatewayTimeout,
	KindNotFound:            http.StatusNotFound,
	KindBadParameter:        http.StatusBadRequest,
	KindUpstreamBadPayload:  http.StatusUnprocessableEntity,
	KindPersistenceFailure:  http.StatusInternalServerError,
	KindUnauthenticated:     http.StatusUnauthorized,
	KindForbidden:           http.StatusForbidden,
	KindUpstreamServerError: http.StatusServiceUnavailable,
	KindUnknown:             http.StatusInternalServerError,
}

// kindMessage holds the default user-facing message per kind.
var kindMessage = map[Kind]string{
	KindRateLimited:         "too many requests",
	KindUnreachable:         "upstream unreachable",
	KindTimeout:             "upstream timed out",
	KindNotFound:            "not found",
	KindBadParameter:        "invalid parameter",
	KindUpstreamBadPayload:  "upstream returned an invalid payload",
	KindPersistenceFailure:  "persistence failure",
	KindUnauthenticated:     "invalid API key",
	KindForbidden:           "access forbidden",
	KindUpstreamServerError: "upstream server error",
	KindUnknown:             "internal error",
}

// Error is a tagged error carrying its kind, HTTP status, user-facing
// message and optional detail. It wraps an underlying cause when present.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Detail  string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Kind, e.Status, e.Message, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s (%d): %s: %s", e.Kind, e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind. An empty message selects the
// kind's default message.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = kindMessage[kind]
	}
	status, ok := kindStatus[kind]
	if !ok {
		kind = KindUnknown
		status = kindStatus[KindUnknown]
	}
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: message,
	}
}

// Wrap builds an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	e := New(kind, message)
	e.Err = err
	return e
}

// WithDetail attaches a detail string and returns the receiver.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithStatus overrides the HTTP status and returns the receiver.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// KindOf extracts the kind from any error. Non-taxonomy errors report
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// From coerces any error into a taxonomy error, wrapping unknown errors
// as KindUnknown. A nil error stays nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindUnknown, "", err)
}

// Envelope is the wire form of an error: {error, status_code, detail?}.
type Envelope struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail,omitempty"`
}

// Envelope returns the serializable error envelope.
func (e *Error) Envelope() Envelope {
	return Envelope{
		Error:      e.Message,
		StatusCode: e.Status,
		Detail:     e.Detail,
	}
}
